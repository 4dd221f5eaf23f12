package internal

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Form is the state behind one rendered page: the selected language, the
// code being edited and the outcome of the last submission.
//
// Submissions may overlap. Each one takes a sequence number when it starts
// and its outcome is applied only if no newer submission was started since.
type Form struct {
	mu       sync.Mutex
	language Language
	code     string
	image    string
	err      string
	success  string
	seq      uint64
	settled  uint64

	executor Executor
	metrics  *Metrics
	logger   logrus.FieldLogger
}

// NewForm returns a form in its initial state
func NewForm(executor Executor, metrics *Metrics, logger logrus.FieldLogger) *Form {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Form{
		language: DefaultLanguage,
		executor: executor,
		metrics:  metrics,
		logger:   logger.WithField("component", "form"),
	}
}

// SelectLanguage changes the target language. The code is kept.
func (f *Form) SelectLanguage(lang Language) error {
	if !lang.Valid() {
		return ErrUnsupportedLanguage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.language = lang
	return nil
}

// EditCode replaces the code
func (f *Form) EditCode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code = code
}

// Submit sends the current code to the backend and applies the outcome.
// Previous messages and image are cleared before the request is made.
func (f *Form) Submit(ctx context.Context) State {
	f.mu.Lock()
	f.err, f.success, f.image = "", "", ""
	f.seq++
	seq := f.seq
	req := ExecuteRequest{Code: f.code, Language: f.language}
	f.mu.Unlock()

	logger := f.logger.WithFields(logrus.Fields{
		"submission": seq,
		"language":   req.Language,
	})
	logger.WithField("code", req.Code).Info("Submit started")

	result, err := f.executor.Execute(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()

	if seq != f.seq {
		logger.WithField("latest", f.seq).Info("Discarding outcome of superseded submission")
		f.metrics.ObserveSubmission(req.Language, OutcomeStale)
		return f.stateLocked()
	}
	f.settled = seq
	f.metrics.ObserveSubmission(req.Language, outcomeOf(err))

	if err != nil {
		f.err = UserMessage(err)
		logger.WithError(err).WithField("message", f.err).Warn("Submit failed")
		return f.stateLocked()
	}

	f.err = ""
	f.image = result.ImageURL
	f.success = MessageChartGenerated
	logger.WithField("image_url", result.ImageURL).Info("Chart generated")
	return f.stateLocked()
}

// ImageLoadFailed records that the browser could not load the chart image
// at imageURL. The signal is ignored unless imageURL is the chart currently
// shown and no submission is outstanding. The image and success message
// stay as they are. It reports whether the failure was recorded.
func (f *Form) ImageLoadFailed(imageURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	logger := f.logger.WithField("image_url", imageURL)
	if f.image == "" || imageURL != f.image || f.settled != f.seq {
		logger.WithField("current_image", f.image).Debug("Ignoring image failure for a chart no longer shown")
		return false
	}

	logger.Warn("Image failed to load")
	f.metrics.ObserveImageFailure()
	f.err = MessageImageLoadFailed
	return true
}

// State returns a snapshot of the form
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *Form) stateLocked() State {
	guidance, _ := Guidance(f.language)
	return State{
		Language: f.language,
		Code:     f.code,
		Image:    f.image,
		Error:    f.err,
		Success:  f.success,
		Guidance: guidance,
		Pending:  f.settled != f.seq,
	}
}
