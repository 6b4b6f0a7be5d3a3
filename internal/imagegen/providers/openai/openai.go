// internal/imagegen/providers/openai/openai.go
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Corphon/SlideForgeMCP/internal/imagegen"
)

func init() {
	imagegen.Register("openai", func() imagegen.Provider {
		return &Provider{
			baseURL: "https://api.openai.com/v1",
		}
	})
}

type Provider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
	defaultSize  string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("openai api key not provided")
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "dall-e-3"
	}

	if size, exists := config["default_size"]; exists && size != "" {
		p.defaultSize = size
	} else {
		p.defaultSize = "1024x1024"
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	return nil
}

func (p *Provider) GetName() string {
	return "OpenAI Images"
}

func (p *Provider) GenerateImage(ctx context.Context, req imagegen.ImageRequest) (*imagegen.ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	size := req.Size
	if size == "" {
		size = p.defaultSize
	}

	requestBody := map[string]interface{}{
		"model":           model,
		"prompt":          req.Prompt,
		"n":               1,
		"size":            size,
		"response_format": "b64_json",
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"POST",
		p.baseURL+"/images/generations",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		var errorResp map[string]interface{}
		body, _ := io.ReadAll(httpResp.Body)
		if err := json.Unmarshal(body, &errorResp); err == nil {
			if errorObj, ok := errorResp["error"].(map[string]interface{}); ok {
				return nil, fmt.Errorf("openai images api error (%d): %v",
					httpResp.StatusCode, errorObj["message"])
			}
		}
		return nil, fmt.Errorf("openai images api error (%d): %s", httpResp.StatusCode, string(body))
	}

	var response struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}

	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, err
	}

	if len(response.Data) == 0 || response.Data[0].B64JSON == "" {
		return nil, errors.New("openai images returned no image data")
	}

	return &imagegen.ImageResponse{
		DataURI:      "data:image/png;base64," + response.Data[0].B64JSON,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}
