// internal/pkg/response/response.go
package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// RequestIDKey is the gin context key the request ID middleware writes.
const RequestIDKey = "request_id"

// Response is the envelope every endpoint answers with.
type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// FieldErrors maps a JSON field name to the failed binding rule.
type FieldErrors map[string]string

func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, envelope(c, true, message, data, ""))
}

// Error aborts the chain and writes a failure envelope. The optional data
// is attached as-is.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	c.Abort()

	var detail string
	if err != nil {
		detail = err.Error()
	}
	var payload interface{}
	if len(data) > 0 {
		payload = data[0]
	}
	c.JSON(code, envelope(c, false, message, payload, detail))
}

// ValidationError answers 400. Binding failures are broken down per field
// under data.fields.
func ValidationError(c *gin.Context, message string, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(FieldErrors, len(verrs))
		for _, fe := range verrs {
			fields[fieldName(fe)] = fe.Tag()
		}
		Error(c, http.StatusBadRequest, message, err, gin.H{"fields": fields})
		return
	}
	Error(c, http.StatusBadRequest, message, err)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

func envelope(c *gin.Context, ok bool, message string, data interface{}, detail string) Response {
	return Response{
		Success:   ok,
		Message:   message,
		Data:      data,
		Error:     detail,
		RequestID: c.GetString(RequestIDKey),
	}
}

// fieldName turns the struct field into snake case, matching the json tags
// used by the request DTOs: WhatsappNumber -> whatsapp_number, IDType -> id_type.
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	isUpper := func(i int) bool { return i >= 0 && i < len(name) && name[i] >= 'A' && name[i] <= 'Z' }
	isLower := func(i int) bool { return i >= 0 && i < len(name) && name[i] >= 'a' && name[i] <= 'z' }

	var b strings.Builder
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if isUpper(i) {
			if i > 0 && (isLower(i-1) || (isUpper(i-1) && isLower(i+1))) {
				b.WriteByte('_')
			}
			ch += 'a' - 'A'
		}
		b.WriteByte(ch)
	}
	return b.String()
}
