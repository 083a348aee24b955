package submission

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPClient talks to a remote media service that exposes the same upload
// and lesson audio endpoints as this service.
type HTTPClient struct {
	rest *resty.Client
}

type uploadRequest struct {
	Data string `json:"data"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

type attachRequest struct {
	AudioURL string `json:"audioUrl"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &HTTPClient{rest: c}
}

// Upload posts the data URI and returns the stored audio URL.
func (c *HTTPClient) Upload(ctx context.Context, dataURI string) (string, error) {
	var out uploadResponse
	var fail errorResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(uploadRequest{Data: dataURI}).
		SetResult(&out).
		SetError(&fail).
		Post("/uploads")
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	if resp.IsError() {
		return "", &StatusError{Op: "upload", Status: resp.StatusCode(), Body: fail.Error}
	}
	if out.URL == "" {
		return "", fmt.Errorf("upload response without url")
	}
	return out.URL, nil
}

func (c *HTTPClient) AttachAudio(ctx context.Context, lessonID, audioURL string) error {
	var fail errorResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(attachRequest{AudioURL: audioURL}).
		SetError(&fail).
		Put("/lessons/" + url.PathEscape(lessonID) + "/audio")
	if err != nil {
		return fmt.Errorf("attach request: %w", err)
	}
	if resp.IsError() {
		return &StatusError{Op: "attach audio", Status: resp.StatusCode(), Body: fail.Error}
	}
	return nil
}

func (c *HTTPClient) DeleteAudio(ctx context.Context, lessonID string) error {
	var fail errorResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetError(&fail).
		Delete("/lessons/" + url.PathEscape(lessonID) + "/audio")
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if resp.IsError() {
		return &StatusError{Op: "delete audio", Status: resp.StatusCode(), Body: fail.Error}
	}
	return nil
}
