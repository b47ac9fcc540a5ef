package mendeley

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Media types of the lookup-table endpoints.
const (
	MediaTypeAcademicStatus = "application/vnd.mendeley-academic_status.1+json"
	MediaTypeSubjectArea    = "application/vnd.mendeley-subject_area.1+json"
	MediaTypeDocumentType   = "application/vnd.mendeley-document-type.1+json"
)

// SubjectArea is a top-level discipline with its subdisciplines.
type SubjectArea struct {
	Name           string   `json:"name"`
	DisplayName    string   `json:"display_name,omitempty"`
	Subdisciplines []string `json:"subdisciplines,omitempty"`
}

// DocumentType is a value accepted in a document's type field.
type DocumentType struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AcademicStatuses lists the academic status values profiles may carry.
func (c *Client) AcademicStatuses(ctx context.Context) ([]string, error) {
	raws, err := c.Session.FetchAll("/academic_statuses", nil, MediaTypeAcademicStatus).Drain(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing academic statuses: %w", err)
	}
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		if d := raw.String("description"); d != "" {
			out = append(out, d)
		}
	}
	return out, nil
}

// SubjectAreas lists the disciplines profiles and groups may be filed under.
func (c *Client) SubjectAreas(ctx context.Context) ([]SubjectArea, error) {
	raws, err := c.Session.FetchAll("/subject_areas", nil, MediaTypeSubjectArea).Drain(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing subject areas: %w", err)
	}
	out := make([]SubjectArea, 0, len(raws))
	for _, raw := range raws {
		area := SubjectArea{Name: raw.String("name"), DisplayName: raw.String("display_name")}
		if area.Name == "" {
			return nil, schemaError("subject_area", "name")
		}
		if subs, ok := raw["subdisciplines"].([]any); ok {
			for _, s := range subs {
				switch v := s.(type) {
				case string:
					area.Subdisciplines = append(area.Subdisciplines, v)
				case map[string]any:
					if name := RawRecord(v).String("name"); name != "" {
						area.Subdisciplines = append(area.Subdisciplines, name)
					}
				}
			}
		}
		out = append(out, area)
	}
	return out, nil
}

// DocumentTypes lists the accepted document types.
func (c *Client) DocumentTypes(ctx context.Context) ([]DocumentType, error) {
	raws, err := c.Session.FetchAll("/document_types", nil, MediaTypeDocumentType).Drain(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing document types: %w", err)
	}
	out := make([]DocumentType, 0, len(raws))
	for _, raw := range raws {
		t := DocumentType{Name: raw.String("name"), Description: raw.String("description")}
		if t.Name == "" {
			return nil, schemaError("document_type", "name")
		}
		out = append(out, t)
	}
	return out, nil
}

// DeletedDocuments returns the ids of documents deleted since the given
// time, within groupID when non-empty.
func (c *Client) DeletedDocuments(ctx context.Context, since time.Time, groupID string) ([]string, error) {
	params := url.Values{"limit": {strconv.Itoa(c.pageLimit)}}
	if !since.IsZero() {
		params.Set("since", since.UTC().Format(time.RFC3339))
	}
	if groupID != "" {
		params.Set("group_id", groupID)
	}
	raws, err := c.Session.FetchAll("/deleted_documents", params, MediaTypeDocument).Drain(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing deleted documents: %w", err)
	}
	ids := make([]string, 0, len(raws))
	for _, raw := range raws {
		id, err := raw.requireID(KindDocument)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
