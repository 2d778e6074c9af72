package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/redis-bulk-actions/internal/domain/model"
)

const defaultRequestTimeout = 30 * time.Second

// apiClient talks to the HTTP API of a running service.
type apiClient struct {
	base *url.URL
	http *http.Client
}

type apiError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func newAPIClient(addr string) (*apiClient, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("service address is required")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse service address: %w", err)
	}
	return &apiClient{base: base, http: &http.Client{Timeout: defaultRequestTimeout}}, nil
}

// defaultServiceAddr derives a local address from HTTP_ADDR.
func defaultServiceAddr(httpAddr string) string {
	if strings.HasPrefix(httpAddr, ":") {
		return "http://localhost" + httpAddr
	}
	if httpAddr == "" {
		return "http://localhost:8080"
	}
	return "http://" + httpAddr
}

func (c *apiClient) do(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return nil, apiErr
	}
	return body, nil
}

func (c *apiClient) List(ctx context.Context) ([]model.Overview, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/bulk-actions", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []model.Overview `json:"items"`
	}
	if err = json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode bulk actions: %w", err)
	}
	return out.Items, nil
}

// Get returns the raw overview, projected by query when it is set.
func (c *apiClient) Get(ctx context.Context, id, query string) ([]byte, error) {
	var params url.Values
	if query != "" {
		params = url.Values{"query": []string{query}}
	}
	return c.do(ctx, http.MethodGet, "/api/bulk-actions/"+url.PathEscape(id), params)
}

func (c *apiClient) Abort(ctx context.Context, id string) (model.Overview, error) {
	body, err := c.do(ctx, http.MethodDelete, "/api/bulk-actions/"+url.PathEscape(id), nil)
	if err != nil {
		return model.Overview{}, err
	}
	var ov model.Overview
	if err = json.Unmarshal(body, &ov); err != nil {
		return model.Overview{}, fmt.Errorf("decode overview: %w", err)
	}
	return ov, nil
}

type remoteOptions struct {
	Addr  string
	ID    string
	Query string
}

func parseRemoteFlags(name string, args []string, stderr io.Writer, defaultAddr string, needID bool) (remoteOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts remoteOptions
	fs.StringVar(&opts.Addr, "addr", defaultAddr, "Base URL of the running service")
	if needID {
		fs.StringVar(&opts.ID, "id", "", "Bulk action id (required)")
	}
	if name == "get" {
		fs.StringVar(&opts.Query, "query", "", "JMESPath expression applied to the overview")
	}
	if err := fs.Parse(args); err != nil {
		return remoteOptions{}, err
	}

	opts.ID = strings.TrimSpace(opts.ID)
	opts.Query = strings.TrimSpace(opts.Query)
	if needID && opts.ID == "" {
		return remoteOptions{}, errors.New("-id is required")
	}
	return opts, nil
}

func remoteClient(cmdCtx *commandContext, name string, args []string, needID bool) (*apiClient, remoteOptions, error) {
	opts, err := parseRemoteFlags(name, args, os.Stderr, defaultServiceAddr(cmdCtx.Config.HTTP.Addr), needID)
	if err != nil {
		return nil, remoteOptions{}, err
	}
	client, err := newAPIClient(opts.Addr)
	if err != nil {
		return nil, remoteOptions{}, err
	}
	return client, opts, nil
}

func runList(cmdCtx *commandContext, args []string) error {
	client, _, err := remoteClient(cmdCtx, "list", args, false)
	if err != nil {
		return err
	}
	items, err := client.List(cmdCtx.Ctx)
	if err != nil {
		return err
	}
	return printOverviewList(cmdCtx.Out, items)
}

func printOverviewList(out io.Writer, items []model.Overview) error {
	if len(items) == 0 {
		return writeln(out, "no bulk actions")
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tDATABASE\tTYPE\tSTATUS\tMATCH\tPROCESSED\tFAILED"); err != nil {
		return fmt.Errorf("write list header: %w", err)
	}
	for _, ov := range items {
		if err := writef(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			ov.ID, ov.DatabaseID, ov.Type, ov.Status, ov.Filter.Match,
			ov.Summary.Processed, ov.Summary.Failed,
		); err != nil {
			return fmt.Errorf("write list row: %w", err)
		}
	}
	return w.Flush()
}

func runGet(cmdCtx *commandContext, args []string) error {
	client, opts, err := remoteClient(cmdCtx, "get", args, true)
	if err != nil {
		return err
	}
	body, err := client.Get(cmdCtx.Ctx, opts.ID, opts.Query)
	if err != nil {
		return err
	}
	if opts.Query != "" {
		_, err = cmdCtx.Out.Write(body)
		return err
	}
	var ov model.Overview
	if err = json.Unmarshal(body, &ov); err != nil {
		return fmt.Errorf("decode overview: %w", err)
	}
	return printOverview(cmdCtx.Out, ov)
}

func runAbort(cmdCtx *commandContext, args []string) error {
	client, opts, err := remoteClient(cmdCtx, "abort", args, true)
	if err != nil {
		return err
	}
	ov, err := client.Abort(cmdCtx.Ctx, opts.ID)
	if err != nil {
		return err
	}
	return printOverview(cmdCtx.Out, ov)
}
