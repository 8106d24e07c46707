// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

type Status string

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusFailed     Status = "failed"
	StatusDone       Status = "done"
)

var StatusMap = map[Status]bool{
	StatusCreated:    true,
	StatusInProgress: true,
	StatusFailed:     true,
	StatusDone:       true,
}

//---------------------

// Task is one asynchronous background-removal job
type Task struct {
	UID         uuid.UUID   `json:"uid"`
	Provider    string      `json:"provider"`
	SourceKey   string      `json:"-"`
	SourceURL   string      `json:"source_url,omitempty"`
	ResultKey   string      `json:"-"`
	ResourceURL string      `json:"resource_url,omitempty"`
	Params      Params      `json:"params,omitempty"`
	Width       *int        `json:"width,omitempty"`
	Height      *int        `json:"height,omitempty"`
	Status      Status      `json:"status,omitempty"`
	ErrMsg      StringSlice `json:"error,omitempty"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
}

//-------------------

type ListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
	Order string `form:"order"`
}

const (
	ByUUID    = "uid"
	ByCreated = "created"
	OrderASC  = "ascend"
	OrderDESC = "descend"
)

// RemovalData - сырые данные из хендлера, для синхронного и асинхронного режима
type RemovalData struct {
	Provider    string
	Image       multipart.File
	ContentType string
	ImageSize   int64
	ImageURL    string
	Params      map[string]any
	Width       *int
	Height      *int
}

// ------------------

var (
	ErrCommon500         error = errors.New("something went wrong. Try again later")          // 500
	ErrIncorrectQuery    error = errors.New("incorrect query parameters")                     // 400
	ErrIncorrectID       error = errors.New("incorrect task UUID")                            // 400
	ErrTaskNotFound      error = errors.New("specified task UUID doesn't exist")              // 404
	ErrResultNotReady    error = errors.New("requested image is not processed yet")           // 404
	ErrSourceConflict    error = errors.New("provide either image file or image_url")         // 400
	ErrEmptySource       error = errors.New("empty/incorrect source image provided")          // 400
	ErrIncorrectSize     error = errors.New("incorrect width/height values provided")         // 400
	ErrIncorrectStatus   error = errors.New("incorrect status provided")                      // 400
	ErrUnsupportedFormat error = errors.New("unsupported image format")                       // 400
	ErrUnknownProvider   error = errors.New("provider is unknown or can't remove background") // 400
	ErrProviderRejected  error = errors.New("provider rejected the image")                    // 502
	ErrProviderDown      error = errors.New("provider is unavailable")                        // 502
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	WEBP = "image/webp"
)

// GetImageFileExt - расширения для ключей в хранилище; WEBP бывает только в результатах
var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
	WEBP: ".webp",
}

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
}

var GetCType = map[imaging.Format]string{
	imaging.JPEG: JPEG,
	imaging.GIF:  GIF,
	imaging.PNG:  PNG,
}

//--------------------

type StringSlice []string

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for StringSlice")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to []StringSlice: %w", err)
	}
	return nil
}

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 || s == nil {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal []StringSlice to JSONB: %w", err)
	}

	return res, nil
}

// Params - параметры провайдера, хранятся в JSONB
type Params map[string]any

func (p *Params) Scan(value any) error {
	if value == nil {
		*p = Params{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for Params")
	}

	if err := json.Unmarshal(b, p); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to Params: %w", err)
	}
	return nil
}

func (p Params) Value() (driver.Value, error) {
	if len(p) == 0 {
		return []byte(`{}`), nil
	}
	res, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Params to JSONB: %w", err)
	}

	return res, nil
}
