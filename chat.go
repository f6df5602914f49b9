package chat

import (
	"time"
	"unicode/utf8"
)

// DefaultTitle is the placeholder title of a session that has not been renamed yet.
const DefaultTitle = "New Chat"

// TypeText is the only message type tag in use.
const TypeText = "text"

// titleLimit is the number of runes kept when a session is auto-titled.
const titleLimit = 30

// Role identifies who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// Capability is the generation mode a turn is routed to.
type Capability string

const (
	CapabilityVision  Capability = "vision"
	CapabilityLogic   Capability = "logic"
	CapabilityCode    Capability = "code"
	CapabilityGeneral Capability = "general"
	CapabilityImage   Capability = "image"
)

// TextKind selects the text model family.
type TextKind string

const (
	KindGeneral TextKind = "general"
	KindLogic   TextKind = "logic"
	KindCode    TextKind = "code"
)

// TextKind returns the text kind for a text capability, or KindGeneral otherwise.
func (c Capability) TextKind() TextKind {
	switch c {
	case CapabilityLogic:
		return KindLogic
	case CapabilityCode:
		return KindCode
	default:
		return KindGeneral
	}
}

// Session groups messages into a conversation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single entry in a session's log.
// ID is assigned by the store and increases with arrival order.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"timestamp"`
}

// NewMessage is the input of Store.AddMessage.
// When Retitle is set the store renames the session to Title, but only while
// its title is still DefaultTitle, in the same unit of work as the insert.
// Title may be empty.
type NewMessage struct {
	SessionID string
	Role      Role
	Content   string
	Type      string
	Retitle   bool
	Title     string
}

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Result is what a text or vision backend returns.
type Result struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// Image is what an image backend returns: the path of the written file.
type Image struct {
	Path  string `json:"path"`
	Model string `json:"model"`
}

// Interaction is one completed generation, kept for later fine-tuning.
type Interaction struct {
	Timestamp  time.Time  `json:"timestamp"`
	SessionID  string     `json:"session_id,omitempty"`
	Capability Capability `json:"capability,omitempty"`
	Model      string     `json:"model"`
	Prompt     string     `json:"prompt"`
	Response   string     `json:"response"`
	HasImage   bool       `json:"has_image"`
}

// ModelSet names the model used for each capability.
type ModelSet struct {
	Vision  string `yaml:"vision"`
	Logic   string `yaml:"logic"`
	Code    string `yaml:"code"`
	General string `yaml:"general"`
}

// DefaultModels returns the local model line-up.
func DefaultModels() ModelSet {
	return ModelSet{
		Vision:  "qwen2.5vl:7b",
		Logic:   "deepseek-r1:7b",
		Code:    "qwen3:8b",
		General: "mistral:latest",
	}
}

// ForKind returns the text model for kind, falling back to the general model.
func (m ModelSet) ForKind(kind TextKind) string {
	switch kind {
	case KindLogic:
		if m.Logic != "" {
			return m.Logic
		}
	case KindCode:
		if m.Code != "" {
			return m.Code
		}
	}
	return m.General
}

// AutoTitle derives a session title from the first user message.
func AutoTitle(content string) string {
	if utf8.RuneCountInString(content) <= titleLimit {
		return content
	}
	return string([]rune(content)[:titleLimit]) + "..."
}
