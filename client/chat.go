package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"

	"vizit/models"
)

func chatPath(visitID, suffix string) string {
	return fmt.Sprintf("/chat/visits/%s%s", url.PathEscape(visitID), suffix)
}

func (c *RestAPI) GetMessages(ctx context.Context, visitID string, page, limit int) ([]models.ChatMessage, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("limit", fmt.Sprint(limit))
	var out []models.ChatMessage
	if err := c.getJSON(ctx, chatPath(visitID, "/messages?"+q.Encode()), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RestAPI) SendMessage(ctx context.Context, visitID, content string) (*models.ChatMessage, error) {
	body := map[string]string{"content": content}
	var out models.ChatMessage
	if err := c.sendJSON(ctx, "POST", chatPath(visitID, "/messages"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RestAPI) SendImageMessage(ctx context.Context, visitID string, image io.Reader, filename string) (*models.ChatMessage, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("copy image payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	var out models.ChatMessage
	if err := c.do(ctx, "POST", chatPath(visitID, "/messages/image"), &buf, writer.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RestAPI) MarkMessagesRead(ctx context.Context, visitID string) error {
	return c.sendJSON(ctx, "PUT", chatPath(visitID, "/messages/read"), nil, nil)
}

func (c *RestAPI) GetUnreadCount(ctx context.Context, visitID string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.getJSON(ctx, chatPath(visitID, "/unread-count"), &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}
