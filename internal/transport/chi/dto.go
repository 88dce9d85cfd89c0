package chi

import (
	"time"

	domchat "github.com/kailas-cloud/reportlens/internal/domain/chat"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
	domkpi "github.com/kailas-cloud/reportlens/internal/domain/kpi"
	kpiuc "github.com/kailas-cloud/reportlens/internal/usecase/kpi"
	overviewuc "github.com/kailas-cloud/reportlens/internal/usecase/overview"
)

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

type uploadCompleteRequest struct {
	Key  string `json:"key" validate:"required,max=512"`
	Name string `json:"name" validate:"required,max=512"`
	URL  string `json:"url" validate:"required,url"`
}

type fileResponse struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Status    string    `json:"upload_status"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

type fileListResponse struct {
	Items []fileResponse `json:"items"`
}

type fileStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type postMessageRequest struct {
	DocumentIDs []string `json:"document_ids" validate:"required,min=1,max=2,dive,required"`
	Message     string   `json:"message" validate:"required"`
}

type messageResponse struct {
	ID            string    `json:"id"`
	DocumentIDs   []string  `json:"document_ids"`
	IsUserMessage bool      `json:"is_user_message"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

type messagePageResponse struct {
	Messages   []messageResponse `json:"messages"`
	NextCursor *string           `json:"next_cursor,omitempty"`
}

type kpiRequest struct {
	DocumentID1 string `json:"document_id_1" validate:"required"`
	DocumentID2 string `json:"document_id_2" validate:"required,nefield=DocumentID1"`
	KPIName     string `json:"kpi_name" validate:"required,max=200"`
}

type kpiResponse struct {
	KPIName string                             `json:"kpi_name"`
	Formula domkpi.Formula                     `json:"formula"`
	Values  map[string][]domkpi.ComponentValue `json:"values"`
	Results map[string]domkpi.Outcome          `json:"results"`
}

type overviewRequest struct {
	DocumentID1 string `json:"document_id_1" validate:"required"`
	DocumentID2 string `json:"document_id_2" validate:"required,nefield=DocumentID1"`
	Message     string `json:"message" validate:"max=4000"`
}

type overviewRow struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Answer string `json:"answer,omitempty"`
	Failed bool   `json:"failed,omitempty"`
}

type overviewResponse struct {
	DocumentIDs []string      `json:"document_ids"`
	Rows        []overviewRow `json:"rows"`
	Markdown    string        `json:"markdown"`
}

func fileToResponse(d *domdoc.Document) fileResponse {
	return fileResponse{
		ID:        d.ID(),
		Key:       d.Key(),
		Name:      d.Name(),
		URL:       d.StorageURL(),
		Status:    string(d.Status()),
		PageCount: d.PageCount(),
		CreatedAt: d.CreatedAt().UTC(),
	}
}

func messageToResponse(m domchat.Message) messageResponse {
	return messageResponse{
		ID:            m.ID,
		DocumentIDs:   m.DocumentIDs,
		IsUserMessage: m.IsUserMessage,
		Text:          m.Text,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

func kpiToResponse(rep kpiuc.Report) kpiResponse {
	values := make(map[string][]domkpi.ComponentValue, len(rep.DocumentIDs))
	for _, id := range rep.DocumentIDs {
		vs := rep.Values[id]
		if vs == nil {
			vs = []domkpi.ComponentValue{}
		}
		values[id] = vs
	}
	return kpiResponse{
		KPIName: rep.Formula.KPIName,
		Formula: rep.Formula,
		Values:  values,
		Results: rep.Result.PerDocument,
	}
}

func overviewToResponse(t overviewuc.Table) overviewResponse {
	rows := make([]overviewRow, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = overviewRow{
			Key:    r.Attribute.Key,
			Label:  r.Attribute.Label,
			Answer: r.Answer,
			Failed: r.Failed,
		}
	}
	return overviewResponse{DocumentIDs: t.DocumentIDs, Rows: rows, Markdown: t.Markdown()}
}
