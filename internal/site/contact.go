package site

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/store"
)

const noticeRateLimited = "You've sent a few messages already. Please wait a minute and try again."

type fieldSpec struct {
	Label       string
	Type        string
	Placeholder string
	Multiline   bool
}

var fieldSpecs = map[string]fieldSpec{
	contact.FieldName:    {Label: "Name", Type: "text", Placeholder: "Your name"},
	contact.FieldEmail:   {Label: "Email", Type: "email", Placeholder: "you@example.com"},
	contact.FieldSubject: {Label: "Subject", Type: "text", Placeholder: "What's this about?"},
	contact.FieldMessage: {Label: "Message", Placeholder: "Tell me about your project...", Multiline: true},
}

type fieldView struct {
	Name        string
	Label       string
	Type        string
	Placeholder string
	Multiline   bool
	Value       string
	Error       string
}

type formView struct {
	Fields    []fieldView
	Status    string
	Reference string
	Notice    string
}

func newFormView(st contact.State) formView {
	fv := formView{Status: st.Status.String(), Reference: st.Reference}
	for _, name := range contact.Fields {
		fv.Fields = append(fv.Fields, newFieldView(st, name))
	}
	return fv
}

func newFieldView(st contact.State, name string) fieldView {
	spec := fieldSpecs[name]
	value, _ := st.Fields.Get(name)
	return fieldView{
		Name:        name,
		Label:       spec.Label,
		Type:        spec.Type,
		Placeholder: spec.Placeholder,
		Multiline:   spec.Multiline,
		Value:       value,
		Error:       st.Errors[name],
	}
}

// outcomeOf classifies a settled submit.
func outcomeOf(st contact.State) store.Outcome {
	switch st.Status {
	case contact.StatusSuccess:
		return store.OutcomeSuccess
	case contact.StatusError:
		return store.OutcomeError
	}
	return store.OutcomeInvalid
}

func statusCode(o store.Outcome) int {
	switch o {
	case store.OutcomeInvalid:
		return http.StatusUnprocessableEntity
	case store.OutcomeError:
		return http.StatusBadGateway
	}
	return http.StatusOK
}

// submit runs one form interaction: the posted fields go in field by
// field, then a single Submit. The outcome is counted, never the text.
func (s *Site) submit(ctx context.Context, in contact.Submission) (contact.State, error) {
	var relayStart time.Time
	ctrl := contact.NewController(s.relay,
		contact.WithLogger(s.logger),
		contact.WithTimeout(s.cfg.Relay.Timeout),
		contact.WithRecipient(s.cfg.Relay.RecipientLabel),
		contact.WithObserver(func(from, to contact.Status) {
			switch {
			case to == contact.StatusSubmitting:
				relayStart = time.Now()
			case from == contact.StatusSubmitting && s.metrics != nil:
				s.metrics.RelayDuration(time.Since(relayStart))
			}
		}),
	)
	defer ctrl.Close()

	for _, name := range contact.Fields {
		v, _ := in.Get(name)
		if err := ctrl.UpdateField(name, v); err != nil {
			return contact.State{}, err
		}
	}

	st, err := ctrl.Submit(ctx)
	if err != nil {
		return st, err
	}

	outcome := outcomeOf(st)
	if s.metrics != nil {
		s.metrics.Submission(string(outcome))
	}
	if s.store != nil {
		if err := s.store.RecordOutcome(context.WithoutCancel(ctx), outcome, st.Reference); err != nil {
			s.logger.Error("Error recording contact outcome", zap.Error(err))
		}
	}
	return st, nil
}

// renderForm answers HTMX with the form fragment and plain posts with
// the whole page.
func (s *Site) renderForm(c *gin.Context, code int, fv formView) {
	p := s.page(c, s.content.Site.Title)
	p.Form = fv
	if isHTMX(c) {
		c.HTML(code, "contact_form", p)
		return
	}
	c.HTML(code, "index.html", p)
}

func (s *Site) handleContact(c *gin.Context) {
	var in contact.Submission
	if err := c.ShouldBind(&in); err != nil {
		c.String(http.StatusBadRequest, "Bad request")
		return
	}

	st, err := s.submit(c.Request.Context(), in)
	if err != nil {
		s.logger.Error("contact submit failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal error")
		return
	}
	s.renderForm(c, statusCode(outcomeOf(st)), newFormView(st))
}

// handleContactField applies one field edit and re-renders that field,
// which clears any error it showed.
func (s *Site) handleContactField(c *gin.Context) {
	name := c.PostForm("field")
	ctrl := contact.NewController(s.relay)
	defer ctrl.Close()

	if err := ctrl.UpdateField(name, c.PostForm(name)); err != nil {
		if errors.Is(err, contact.ErrUnknownField) {
			c.String(http.StatusBadRequest, "Unknown field")
			return
		}
		c.String(http.StatusInternalServerError, "Internal error")
		return
	}
	c.HTML(http.StatusOK, "contact_field", newFieldView(ctrl.State(), name))
}

type apiResponse struct {
	Status    string            `json:"status"`
	Errors    map[string]string `json:"errors,omitempty"`
	Reference string            `json:"reference,omitempty"`
	Message   string            `json:"message,omitempty"`
}

func (s *Site) handleContactAPI(c *gin.Context) {
	var in contact.Submission
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Status: "error", Message: "invalid JSON body"})
		return
	}

	st, err := s.submit(c.Request.Context(), in)
	if err != nil {
		s.logger.Error("contact submit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, apiResponse{Status: "error", Message: "internal error"})
		return
	}

	outcome := outcomeOf(st)
	resp := apiResponse{Status: string(outcome), Reference: st.Reference}
	switch outcome {
	case store.OutcomeInvalid:
		resp.Errors = st.Errors
	case store.OutcomeError:
		resp.Message = "Failed to send message. Please try again or contact me directly."
	default:
		resp.Message = "Message sent successfully!"
	}
	c.JSON(statusCode(outcome), resp)
}

// rateLimited guards the contact posts per client.
func (s *Site) rateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		s.logger.Warn("Contact rate limit hit", zap.String("path", c.FullPath()))
		c.Header("Retry-After", "60")

		if c.ContentType() == gin.MIMEJSON {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				apiResponse{Status: "error", Message: "too many requests"})
			return
		}

		var in contact.Submission
		_ = c.ShouldBind(&in)
		st := contact.NewState()
		st.Fields = in
		fv := newFormView(st)
		fv.Notice = noticeRateLimited
		s.renderForm(c, http.StatusTooManyRequests, fv)
		c.Abort()
	}
}
