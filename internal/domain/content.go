package domain

import (
	"encoding/json"
	"fmt"
)

// Content is the generated_content payload of a deliverable. The shape
// depends on the deliverable type; unrecognized types round-trip as Raw.
type Content struct {
	Kind     string
	Report   *ReportContent
	Design   *DesignContent
	Code     *CodeContent
	Analysis *AnalysisContent
	Raw      json.RawMessage
}

type ReportContent struct {
	Summary  string   `json:"summary"`
	Sections []string `json:"sections,omitempty"`
}

type DesignContent struct {
	Tool        string `json:"tool,omitempty"`
	ArtifactURL string `json:"artifact_url,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type CodeContent struct {
	RepoURL string   `json:"repo_url,omitempty"`
	Branch  string   `json:"branch,omitempty"`
	Files   []string `json:"files,omitempty"`
}

type AnalysisContent struct {
	Query     string   `json:"query,omitempty"`
	Findings  []string `json:"findings,omitempty"`
	Citations []string `json:"citations,omitempty"`
}

// DecodeContent parses a raw content payload according to the deliverable type.
func DecodeContent(deliverableType string, raw []byte) (Content, error) {
	if len(raw) == 0 {
		return Content{Kind: deliverableType}, nil
	}
	c := Content{Kind: deliverableType}
	var err error
	switch deliverableType {
	case "report":
		c.Report = &ReportContent{}
		err = json.Unmarshal(raw, c.Report)
	case "design":
		c.Design = &DesignContent{}
		err = json.Unmarshal(raw, c.Design)
	case "code":
		c.Code = &CodeContent{}
		err = json.Unmarshal(raw, c.Code)
	case "analysis":
		c.Analysis = &AnalysisContent{}
		err = json.Unmarshal(raw, c.Analysis)
	default:
		if !json.Valid(raw) {
			return c, fmt.Errorf("content for type %s is not valid JSON", deliverableType)
		}
		c.Raw = append(json.RawMessage(nil), raw...)
	}
	if err != nil {
		return Content{}, fmt.Errorf("decode %s content: %w", deliverableType, err)
	}
	return c, nil
}

// Encode serializes the populated variant back to JSON.
func (c Content) Encode() ([]byte, error) {
	switch {
	case c.Report != nil:
		return json.Marshal(c.Report)
	case c.Design != nil:
		return json.Marshal(c.Design)
	case c.Code != nil:
		return json.Marshal(c.Code)
	case c.Analysis != nil:
		return json.Marshal(c.Analysis)
	case c.Raw != nil:
		return c.Raw, nil
	default:
		return nil, nil
	}
}
