package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/synssins/homebox-companion/internal/apperrors"
)

// Client talks to a Homebox instance's REST API. It is stateless with
// respect to session data and safe for concurrent use.
type Client struct {
	BaseURL    string
	Token      string
	httpClient *http.Client
}

// NewClient creates a new Homebox client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ItemInput is the payload for creating a catalog item.
type ItemInput struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Quantity     int    `json:"quantity"`
	LocationID   string `json:"locationId,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	ModelNumber  string `json:"modelNumber,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// Item is a catalog item as returned by Homebox.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

// Location is a storage location in the catalog.
type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateItem creates a catalog item and returns its ID.
func (c *Client) CreateItem(ctx context.Context, item ItemInput) (string, error) {
	var created Item
	if err := c.do(ctx, "POST", "/api/v1/items", item, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// CreateLocation creates a storage location and returns its ID.
func (c *Client) CreateLocation(ctx context.Context, name, description string) (string, error) {
	body := map[string]string{"name": name, "description": description}
	var created Location
	if err := c.do(ctx, "POST", "/api/v1/locations", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// ListLocations returns all storage locations.
func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	var locations []Location
	if err := c.do(ctx, "GET", "/api/v1/locations", nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// SearchItems returns items matching the query string.
func (c *Client) SearchItems(ctx context.Context, query string) ([]Item, error) {
	path := "/api/v1/items"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var resp struct {
		Items []Item `json:"items"`
	}
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// UploadAttachment attaches a photo to an existing item.
func (c *Client) UploadAttachment(ctx context.Context, itemID, filename string, data []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write attachment data: %w", err)
	}
	if err := writer.WriteField("type", "photo"); err != nil {
		return fmt.Errorf("failed to write attachment type: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/items/%s/attachments", c.BaseURL, url.PathEscape(itemID))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Newf(apperrors.KindUnavailable, "failed to upload attachment: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Newf(apperrors.KindUnavailable, "failed to reach Homebox: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.Newf(apperrors.KindInvalid, "failed to decode Homebox response: %v", err)
		}
	}
	return nil
}

// statusError maps a Homebox HTTP error response to a typed outcome.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("Homebox returned status %d: %s", resp.StatusCode, string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.New(apperrors.KindUnauthorized, msg)
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.New(apperrors.KindNotFound, msg)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return apperrors.New(apperrors.KindInvalid, msg)
	case resp.StatusCode >= 500:
		return apperrors.New(apperrors.KindUnavailable, msg)
	default:
		return apperrors.New(apperrors.KindInternal, msg)
	}
}
