package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/media-sensitivity-detector/internal/api"
	"github.com/fpang/media-sensitivity-detector/internal/config"
	"github.com/fpang/media-sensitivity-detector/internal/detect"
)

const toolName = "detect_sensitivity"

type urlDetector interface {
	DetectURL(ctx context.Context, rawURL string, p detect.Params) (detect.Result, error)
}

// DetectInput mirrors the query parameters of GET /api/v1/detect.
type DetectInput struct {
	URL                       string   `json:"url" jsonschema:"http(s) or s3 URL of the image or video to check"`
	SensitiveThreshold        *float64 `json:"sensitiveThreshold,omitempty" jsonschema:"probability above which an image is sensitive, default 0.5"`
	SensitiveThresholdForPorn *float64 `json:"sensitiveThresholdForPorn,omitempty" jsonschema:"probability above which an image is porn, default 0.75"`
	EnableDetectionForVideos  bool     `json:"enableDetectionForVideos,omitempty" jsonschema:"decode and sample video frames instead of skipping videos"`
}

// DetectOutput is the tool result.
type DetectOutput = api.DetectResponse

func newServer(d urlDetector) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "media-sensitivity-detector", Version: config.Version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        toolName,
		Description: "Download an image or video and report whether it is sensitive (suggestive or explicit) and whether it is pornographic.",
	}, detectTool(d))
	return server
}

func detectTool(d urlDetector) mcp.ToolHandlerFor[DetectInput, DetectOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in DetectInput) (*mcp.CallToolResult, DetectOutput, error) {
		if in.URL == "" {
			return nil, DetectOutput{}, errors.New("url is required")
		}

		p := detect.DefaultParams()
		if in.SensitiveThreshold != nil {
			p.SensitiveThreshold = *in.SensitiveThreshold
		}
		if in.SensitiveThresholdForPorn != nil {
			p.SensitiveThresholdForPorn = *in.SensitiveThresholdForPorn
		}
		p.AnalyzeVideo = in.EnableDetectionForVideos

		res, err := d.DetectURL(ctx, in.URL, p)
		if err != nil {
			log.Warn().Err(err).
				Str("operation", "mcp:"+toolName).
				Str("url", in.URL).
				Msg("Detection failed")
			return nil, DetectOutput{}, fmt.Errorf("detection failed: %w", err)
		}
		return nil, DetectOutput{Sensitive: res.Sensitive, Porn: res.Porn}, nil
	}
}
