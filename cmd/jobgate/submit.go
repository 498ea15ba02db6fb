package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/osvaldoandrade/jobgate/pkg/domain"
)

type client struct {
	baseURL     string
	httpClient  *http.Client
	interactive bool
	progress    io.Writer
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		interactive: isTerminal(int(os.Stdout.Fd())),
		progress:    os.Stderr,
	}
}

// eofReader calls onEOF once the wrapped reader is drained.
type eofReader struct {
	r     io.Reader
	once  sync.Once
	onEOF func()
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		e.once.Do(e.onEOF)
	}
	return n, err
}

func (c *client) submit(ctx context.Context, sub domain.JobSubmission) (int, []byte, error) {
	out, err := sub.Encode()
	if err != nil {
		return 0, nil, err
	}
	body := out.Body()

	bar := progressbar.NewOptions64(int64(len(body)),
		progressbar.OptionSetDescription("Uploading "+sub.File.Name),
		progressbar.OptionSetWriter(c.progress),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(18),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(c.interactive),
	)
	spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(c.progress))
	spin.Suffix = " Waiting for job runner..."

	var (
		mu   sync.Mutex
		done bool
	)
	reader := &eofReader{
		r: io.TeeReader(bytes.NewReader(body), bar),
		onEOF: func() {
			_ = bar.Finish()
			mu.Lock()
			defer mu.Unlock()
			if c.interactive && !done {
				spin.Start()
			}
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit-job", reader)
	if err != nil {
		return 0, nil, err
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", out.ContentType())

	resp, err := c.httpClient.Do(req)
	mu.Lock()
	done = true
	spin.Stop()
	mu.Unlock()
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *client) health(ctx context.Context) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, nil
}

func submitCmd(baseURL *string, ui *ui) *cobra.Command {
	var (
		file    string
		method  string
		lags    int
		window  int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:     "submit",
		Short:   "Submit a job",
		Example: "jobgate submit --file data.csv --method arima --lags 3 --window 12",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(method) == "" {
				return errors.New("--method is required")
			}
			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			sub := domain.JobSubmission{
				File:   domain.NamedFile{Name: filepath.Base(file), Content: content},
				Method: method,
				Lags:   lags,
				Window: window,
			}

			c := newClient(*baseURL, timeout)
			status, resp, err := c.submit(cmd.Context(), sub)
			if err != nil {
				return err
			}
			return printRelayed(cmd.OutOrStdout(), ui, status, resp)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Data file to upload")
	cmd.Flags().StringVar(&method, "method", "", "Analysis method")
	cmd.Flags().IntVar(&lags, "lags", 0, "Number of lags")
	cmd.Flags().IntVar(&window, "window", 0, "Window size")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Overall request timeout")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("method")
	_ = cmd.MarkFlagRequired("lags")
	_ = cmd.MarkFlagRequired("window")
	return cmd
}

func healthCmd(baseURL *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check gateway liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, 10*time.Second)
			status, resp, err := c.health(cmd.Context())
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is up\n", ui.ok("[OK]"), c.baseURL)
			return nil
		},
	}
}

// printRelayed writes the gateway response and turns non-2xx into an error.
func printRelayed(w io.Writer, ui *ui, status int, body []byte) error {
	label := ui.ok(fmt.Sprintf("[%d]", status))
	if status >= 300 {
		label = ui.warn(fmt.Sprintf("[%d]", status))
	}
	fmt.Fprintf(w, "%s %s\n", label, strings.TrimSpace(string(body)))
	if status >= 300 {
		return fmt.Errorf("gateway returned %d", status)
	}
	return nil
}

func isTerminal(fd int) bool {
	return term.IsTerminal(fd)
}
