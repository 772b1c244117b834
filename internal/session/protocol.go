package session

import (
	"encoding/json"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/engine"
	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
	"github.com/certcanvas/certcanvas/backend-go/internal/render"
)

type Message struct {
	Type    string          `json:"type"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	// Client -> server
	TypeCommand = "command"

	// Server -> client
	TypeWelcome         = "welcome"
	TypeState           = "state"
	TypeSaved           = "saved"
	TypeExported        = "exported"
	TypeTemplateChanged = "template.changed"
	TypeError           = "error"
)

// Command ops.
const (
	OpLoad               = "load"
	OpNew                = "new"
	OpPointerDown        = "pointerDown"
	OpPointerMove        = "pointerMove"
	OpPointerUp          = "pointerUp"
	OpDoubleClick        = "doubleClick"
	OpBeginResize        = "beginResize"
	OpCancel             = "cancel"
	OpSelect             = "select"
	OpAdd                = "add"
	OpAddPreset          = "addPreset"
	OpAddField           = "addField"
	OpUpdate             = "update"
	OpDelete             = "delete"
	OpDuplicate          = "duplicate"
	OpBringToFront       = "bringToFront"
	OpReorder            = "reorder"
	OpNudge              = "nudge"
	OpEditText           = "editText"
	OpEndTextEdit        = "endTextEdit"
	OpResizeCanvas       = "resizeCanvas"
	OpSetPreset          = "setPreset"
	OpRename             = "rename"
	OpSetBackground      = "setBackground"
	OpSetViewport        = "setViewport"
	OpSetPreviewBindings = "setPreviewBindings"
	OpUndo               = "undo"
	OpRedo               = "redo"
	OpSave               = "save"
	OpExport             = "export"
)

// CommandPayload is one editor command. Only the fields the op needs are set.
type CommandPayload struct {
	Op         string               `json:"op"`
	X          float64              `json:"x,omitempty"`
	Y          float64              `json:"y,omitempty"`
	ID         string               `json:"id,omitempty"`
	Kind       document.Kind        `json:"kind,omitempty"`
	Preset     string               `json:"preset,omitempty"`
	Field      string               `json:"field,omitempty"`
	Handle     engine.Handle        `json:"handle,omitempty"`
	Patch      *document.Patch      `json:"patch,omitempty"`
	Order      []string             `json:"order,omitempty"`
	Width      int                  `json:"width,omitempty"`
	Height     int                  `json:"height,omitempty"`
	Name       string               `json:"name,omitempty"`
	Content    string               `json:"content,omitempty"`
	Background *document.Background `json:"background,omitempty"`
	Viewport   *geometry.Rect       `json:"viewport,omitempty"`
	Bindings   placeholder.Bindings `json:"bindings,omitempty"`
	TemplateID string               `json:"templateId,omitempty"`
}

type WelcomePayload struct {
	SessionID  string `json:"sessionId"`
	ClientID   string `json:"clientId"`
	TemplateID string `json:"templateId,omitempty"`
}

// StatePayload is sent after every command that changes what the user sees.
type StatePayload struct {
	State      engine.State         `json:"state"`
	Commands   []render.DrawCommand `json:"commands"`
	TemplateID string               `json:"templateId,omitempty"`
}

type SavedPayload struct {
	TemplateID   string `json:"templateId"`
	ThumbnailURL string `json:"thumbnailUrl"`
	UpdatedAt    string `json:"updatedAt"`
}

type TemplateChangedPayload struct {
	TemplateID string `json:"templateId"`
	By         string `json:"by"`
}

type ErrorPayload struct {
	Op      string   `json:"op,omitempty"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func newMessage(typ string, payload any) *Message {
	data, _ := json.Marshal(payload)
	return &Message{Type: typ, Payload: data}
}
