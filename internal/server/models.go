package server

import (
	"encoding/json"

	"github.com/mohammad-safakhou/folio/internal/store"
)

// HTTPError is the error envelope returned by the server.
type HTTPError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// LoginRequest is the operator login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserInfo struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	Status string   `json:"status"`
	Token  string   `json:"token"`
	User   UserInfo `json:"user"`
}

type StatsResponse struct {
	Status string         `json:"status"`
	Stats  map[string]any `json:"stats"`
}

type ActivityResponse struct {
	Status   string           `json:"status"`
	Activity []store.Activity `json:"activity"`
}

type WeeklyResponse struct {
	Status string           `json:"status"`
	Weekly []map[string]any `json:"weekly"`
}

type ProjectsResponse struct {
	Status   string            `json:"status"`
	Projects []json.RawMessage `json:"projects"`
	Commit   *string           `json:"commit"`
}

// SaveProjectsRequest carries the full list; OldProjects enables image cleanup.
type SaveProjectsRequest struct {
	Projects    []json.RawMessage `json:"projects"`
	Message     string            `json:"message,omitempty"`
	OldProjects []json.RawMessage `json:"oldProjects,omitempty"`
}

type SaveResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Commit  string `json:"commit"`
}

type UploadResponse struct {
	Status   string `json:"status"`
	ImageURL string `json:"imageUrl"`
	Filename string `json:"filename"`
}

type ContactResponse struct {
	Status  string          `json:"status"`
	Contact json.RawMessage `json:"contact"`
	Commit  *string         `json:"commit"`
}

type SaveContactRequest struct {
	Contact json.RawMessage `json:"contact"`
	Message string          `json:"message,omitempty"`
}

// SubmitCommunicationRequest is the public contact-form payload.
type SubmitCommunicationRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type SubmitCommunicationResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	RecordID string `json:"record_id"`
}

type CommunicationListResponse struct {
	Status  string                `json:"status"`
	Records []store.Communication `json:"records"`
	Count   int                   `json:"count"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ContentSaveRequest is used by knowledge and system-instructions saves.
type ContentSaveRequest struct {
	Content *string `json:"content"`
	Message string  `json:"message,omitempty"`
}

type KnowledgeEntry struct {
	Content string `json:"content"`
	Exists  bool   `json:"exists"`
}

type KnowledgeAllResponse struct {
	Status     string                    `json:"status"`
	Categories map[string]KnowledgeEntry `json:"categories"`
}

type CategoriesResponse struct {
	Status     string   `json:"status"`
	Categories []string `json:"categories"`
}

type KnowledgeResponse struct {
	Status   string  `json:"status"`
	Category string  `json:"category"`
	Content  string  `json:"content"`
	SHA      *string `json:"sha"`
}

type InstructionsResponse struct {
	Status  string  `json:"status"`
	Content string  `json:"content"`
	SHA     *string `json:"sha"`
}

type HistoryResponse struct {
	Status  string                       `json:"status"`
	History []store.InstructionsRevision `json:"history"`
}

const statusSuccess = "success"
