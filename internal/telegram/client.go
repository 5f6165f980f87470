// Package telegram is a small Bot API client: long polling, text and
// document messages, chat lookup and file download.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/saidjob/olympiad/internal/domain/session"
)

const (
	defaultAPIBase   = "https://api.telegram.org"
	maxDownloadBytes = 20 << 20
)

// APIError is a failed Bot API call.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Is maps blocked, deactivated and unknown chats to session.ErrRecipientUnreachable.
func (e *APIError) Is(target error) bool {
	if target != session.ErrRecipientUnreachable {
		return false
	}
	desc := strings.ToLower(e.Description)
	return e.Code == http.StatusForbidden ||
		strings.Contains(desc, "chat not found") ||
		strings.Contains(desc, "user is deactivated")
}

type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	fileURL    string
}

func NewClient(token string) *Client {
	return NewClientWithBase(token, defaultAPIBase)
}

// NewClientWithBase points the client at a different API host.
func NewClientWithBase(token, apiBase string) *Client {
	apiBase = strings.TrimRight(apiBase, "/")
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		baseURL:    fmt.Sprintf("%s/bot%s", apiBase, token),
		fileURL:    fmt.Sprintf("%s/file/bot%s", apiBase, token),
	}
}

func (c *Client) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method)
}

func (c *Client) do(req *http.Request, method string) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	if !apiResp.OK {
		code := apiResp.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &APIError{Method: method, Code: code, Description: apiResp.Description}
	}

	return apiResp.Result, nil
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	req := GetUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: []string{"message"},
	}
	result, err := c.call(ctx, "getUpdates", req)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("unmarshal updates: %w", err)
	}
	return updates, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	result, err := c.call(ctx, "sendMessage", SendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return 0, err
	}
	var msg MessageResult
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("unmarshal message: %w", err)
	}
	return msg.MessageID, nil
}

// SendDocument uploads content as a multipart document.
func (c *Client) SendDocument(ctx context.Context, chatID int64, fileName string, content []byte, caption string) (int64, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return 0, err
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return 0, err
		}
	}
	part, err := w.CreateFormFile("document", fileName)
	if err != nil {
		return 0, err
	}
	if _, err := part.Write(content); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sendDocument", &body)
	if err != nil {
		return 0, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	result, err := c.do(req, "sendDocument")
	if err != nil {
		return 0, err
	}
	var msg MessageResult
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("unmarshal message: %w", err)
	}
	return msg.MessageID, nil
}

func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	result, err := c.call(ctx, "getChat", GetChatRequest{ChatID: chatID})
	if err != nil {
		return nil, err
	}
	var chat Chat
	if err := json.Unmarshal(result, &chat); err != nil {
		return nil, fmt.Errorf("unmarshal chat: %w", err)
	}
	return &chat, nil
}

// DownloadFile resolves fileID and fetches its content.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	result, err := c.call(ctx, "getFile", GetFileRequest{FileID: fileID})
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(result, &f); err != nil {
		return nil, fmt.Errorf("unmarshal file: %w", err)
	}
	if f.FilePath == "" {
		return nil, errors.New("telegram getFile: empty file path")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL+"/"+f.FilePath, nil)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", f.FilePath, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("download %s: file exceeds %d bytes", f.FilePath, maxDownloadBytes)
	}
	return data, nil
}
