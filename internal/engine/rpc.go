package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// rpcClient talks JSON-RPC over HTTP to an external extractor daemon that
// owns the platform fetch protocol. It binds both the download adapter and
// the enumeration engine contracts for one platform.
type rpcClient struct {
	rpcURL     string
	token      string
	httpClient *http.Client
}

type rpcRequest struct {
	Version string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      string `json:"id"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Version string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func newRPCClient(rpcURL, token string) rpcClient {
	return rpcClient{
		rpcURL: rpcURL,
		token:  token,
		httpClient: &http.Client{
			// downloads can run long; enumeration calls finish well within this
			Timeout: 30 * time.Minute,
		},
	}
}

func (c *rpcClient) call(ctx context.Context, method string, params, out any) error {
	request := rpcRequest{
		Version: "2.0",
		Method:  method,
		ID:      uuid.NewString(),
		Params:  params,
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send rpc request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read rpc response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc error: %s (code %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("unmarshal rpc result: %w", err)
		}
	}
	return nil
}

type downloadParams struct {
	URL        string `json:"url"`
	DownloadID string `json:"downloadId"`
}

type listParams struct {
	Source   string `json:"source"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type listResult struct {
	Entries []string `json:"entries"`
	Total   int      `json:"total"`
}

// YouTubeClient is the extractor binding for YouTube channels and playlists.
type YouTubeClient struct {
	rpcClient
}

func NewYouTubeClient(rpcURL, token string) *YouTubeClient {
	return &YouTubeClient{rpcClient: newRPCClient(rpcURL, token)}
}

func (c *YouTubeClient) Download(ctx context.Context, url, downloadID string) (*Result, error) {
	var result Result
	if err := c.call(ctx, "youtube.download", downloadParams{URL: url, DownloadID: downloadID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *YouTubeClient) VideoCount(ctx context.Context, source string) (int, error) {
	var result listResult
	if err := c.call(ctx, "youtube.count", listParams{Source: source}, &result); err != nil {
		return 0, err
	}
	return result.Total, nil
}

func (c *YouTubeClient) VideoPage(ctx context.Context, source string, page, size int) ([]string, error) {
	var result listResult
	if err := c.call(ctx, "youtube.list", listParams{Source: source, Page: page, PageSize: size}, &result); err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// SupportsIncremental marks playlist sources for batched enumeration: the
// daemon can count them cheaply, and they can run to tens of thousands of
// entries.
func (c *YouTubeClient) SupportsIncremental(source string) bool {
	return strings.Contains(source, "list=") || strings.Contains(source, "/playlist")
}

// BilibiliClient is the extractor binding for Bilibili spaces, collections
// and series.
type BilibiliClient struct {
	rpcClient
}

func NewBilibiliClient(rpcURL, token string) *BilibiliClient {
	return &BilibiliClient{rpcClient: newRPCClient(rpcURL, token)}
}

func (c *BilibiliClient) Download(ctx context.Context, url, downloadID string) (*Result, error) {
	var result Result
	if err := c.call(ctx, "bilibili.download", downloadParams{URL: url, DownloadID: downloadID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *BilibiliClient) VideoCount(ctx context.Context, source string) (int, error) {
	var result listResult
	if err := c.call(ctx, "bilibili.count", listParams{Source: source}, &result); err != nil {
		return 0, err
	}
	return result.Total, nil
}

func (c *BilibiliClient) VideoPage(ctx context.Context, source string, page, size int) ([]string, error) {
	var result listResult
	if err := c.call(ctx, "bilibili.list", listParams{Source: source, Page: page, PageSize: size}, &result); err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// FallbackPage lists via the space API when the primary extraction path is
// blocked and returned nothing.
func (c *BilibiliClient) FallbackPage(ctx context.Context, source string, page, size int) ([]string, error) {
	var result listResult
	if err := c.call(ctx, "bilibili.listSpace", listParams{Source: source, Page: page, PageSize: size}, &result); err != nil {
		return nil, err
	}
	return result.Entries, nil
}

type resolveParams struct {
	Source string `json:"source"`
}

type resolveResult struct {
	CollectionID string `json:"collectionId"`
}

// ResolveCollection maps an author/space url to the canonical collection or
// series id the list endpoints accept.
func (c *BilibiliClient) ResolveCollection(ctx context.Context, source string) (string, error) {
	var result resolveResult
	if err := c.call(ctx, "bilibili.resolveCollection", resolveParams{Source: source}, &result); err != nil {
		return "", err
	}
	if result.CollectionID == "" {
		return "", fmt.Errorf("no collection for source %s", source)
	}
	return result.CollectionID, nil
}
