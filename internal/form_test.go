package internal

import (
	"context"
	"net/http"
	"sync"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor records requests and answers with fn
type fakeExecutor struct {
	mu    sync.Mutex
	calls []ExecuteRequest
	fn    func(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.fn(ctx, req)
}

func (f *fakeExecutor) Calls() []ExecuteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ExecuteRequest(nil), f.calls...)
}

func chartResult(url string) func(context.Context, ExecuteRequest) (ExecuteResult, error) {
	return func(context.Context, ExecuteRequest) (ExecuteResult, error) {
		return ExecuteResult{ImagePath: "/output/visualization.png", ImageURL: url}, nil
	}
}

func failWith(err error) func(context.Context, ExecuteRequest) (ExecuteResult, error) {
	return func(context.Context, ExecuteRequest) (ExecuteResult, error) {
		return ExecuteResult{}, err
	}
}

func newTestForm(t *testing.T, executor Executor) *Form {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	return NewForm(executor, nil, logger)
}

func TestNewFormInitialState(t *testing.T) {
	form := newTestForm(t, &fakeExecutor{})
	state := form.State()

	assert.Equal(t, LanguagePython, state.Language)
	assert.Empty(t, state.Code)
	assert.Empty(t, state.Image)
	assert.Empty(t, state.Error)
	assert.Empty(t, state.Success)
	assert.False(t, state.Pending)
	assert.Contains(t, state.Guidance, "Python Guidelines:")
}

func TestSelectLanguageKeepsCode(t *testing.T) {
	form := newTestForm(t, &fakeExecutor{})
	form.EditCode("plot(1:10)")

	require.NoError(t, form.SelectLanguage(LanguageR))
	state := form.State()
	assert.Equal(t, LanguageR, state.Language)
	assert.Equal(t, "plot(1:10)", state.Code)
	assert.Contains(t, state.Guidance, "R Guidelines:")

	require.NoError(t, form.SelectLanguage(LanguagePython))
	state = form.State()
	assert.Equal(t, "plot(1:10)", state.Code)
	assert.Contains(t, state.Guidance, "Python Guidelines:")
}

func TestSelectLanguageRejectsUnknown(t *testing.T) {
	form := newTestForm(t, &fakeExecutor{})
	require.NoError(t, form.SelectLanguage(LanguageR))

	err := form.SelectLanguage(Language("julia"))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.Equal(t, LanguageR, form.State().Language)
}

func TestSubmitSendsCodeAndLanguage(t *testing.T) {
	executor := &fakeExecutor{fn: chartResult("http://127.0.0.1:5000/output/visualization.png")}
	form := newTestForm(t, executor)
	form.EditCode("library(ggplot2)")
	require.NoError(t, form.SelectLanguage(LanguageR))

	form.Submit(context.Background())

	assert.Equal(t, []ExecuteRequest{{Code: "library(ggplot2)", Language: LanguageR}}, executor.Calls())
}

func TestSubmitEmptyCode(t *testing.T) {
	executor := &fakeExecutor{fn: failWith(&BackendError{StatusCode: http.StatusBadRequest, Message: "Invalid input"})}
	form := newTestForm(t, executor)

	state := form.Submit(context.Background())

	require.Len(t, executor.Calls(), 1)
	assert.Equal(t, "", executor.Calls()[0].Code)
	assert.Equal(t, "Invalid input", state.Error)
}

func TestSubmitOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		fn          func(context.Context, ExecuteRequest) (ExecuteResult, error)
		wantImage   string
		wantSuccess string
		wantError   string
	}{
		{
			name:        "Chart generated",
			fn:          chartResult("http://127.0.0.1:5000/output/visualization.png"),
			wantImage:   "http://127.0.0.1:5000/output/visualization.png",
			wantSuccess: MessageChartGenerated,
		},
		{
			name:      "Image missing",
			fn:        failWith(ErrImageNotFound),
			wantError: MessageImageNotFound,
		},
		{
			name:      "Backend error",
			fn:        failWith(&BackendError{StatusCode: http.StatusInternalServerError, Message: "syntax error"}),
			wantError: "syntax error",
		},
		{
			name:      "Backend error without message",
			fn:        failWith(&BackendError{StatusCode: http.StatusInternalServerError}),
			wantError: MessageSomethingWrong,
		},
		{
			name:      "Network failure",
			fn:        failWith(ErrTransport),
			wantError: MessageSomethingWrong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := newTestForm(t, &fakeExecutor{fn: tt.fn})
			state := form.Submit(context.Background())

			assert.Equal(t, tt.wantImage, state.Image)
			assert.Equal(t, tt.wantSuccess, state.Success)
			assert.Equal(t, tt.wantError, state.Error)
			assert.False(t, state.Pending)
			assert.Equal(t, state, form.State())
		})
	}
}

func TestSubmitThroughBackendClient(t *testing.T) {
	tests := []struct {
		name        string
		client      *http.Client
		wantImage   string
		wantSuccess string
		wantError   string
	}{
		{
			name:        "Image path resolved against base URL",
			client:      cannedClient(http.StatusOK, `{"image":"/output/visualization.png"}`),
			wantImage:   "http://127.0.0.1:5000/output/visualization.png",
			wantSuccess: MessageChartGenerated,
		},
		{
			name:      "No image field",
			client:    cannedClient(http.StatusOK, `{}`),
			wantError: MessageImageNotFound,
		},
		{
			name:      "Backend error verbatim",
			client:    cannedClient(http.StatusBadRequest, `{"error":"syntax error"}`),
			wantError: "syntax error",
		},
		{
			name:      "Network failure without body",
			client:    failingClient(assert.AnError),
			wantError: MessageSomethingWrong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newTestBackend(t, "http://127.0.0.1:5000", tt.client)
			form := newTestForm(t, backend)

			state := form.Submit(context.Background())

			assert.Equal(t, tt.wantImage, state.Image)
			assert.Equal(t, tt.wantSuccess, state.Success)
			assert.Equal(t, tt.wantError, state.Error)
		})
	}
}

func TestSubmitClearsPreviousOutcome(t *testing.T) {
	executor := &fakeExecutor{fn: chartResult("http://127.0.0.1:5000/output/visualization.png")}
	form := newTestForm(t, executor)
	form.Submit(context.Background())
	require.True(t, form.ImageLoadFailed("http://127.0.0.1:5000/output/visualization.png"))

	before := form.State()
	require.NotEmpty(t, before.Image)
	require.NotEmpty(t, before.Success)
	require.NotEmpty(t, before.Error)

	var during State
	executor.fn = func(context.Context, ExecuteRequest) (ExecuteResult, error) {
		during = form.State()
		return ExecuteResult{}, ErrImageNotFound
	}
	after := form.Submit(context.Background())

	assert.Empty(t, during.Image)
	assert.Empty(t, during.Success)
	assert.Empty(t, during.Error)
	assert.True(t, during.Pending)

	assert.Empty(t, after.Image)
	assert.Empty(t, after.Success)
	assert.Equal(t, MessageImageNotFound, after.Error)
}

func TestImageLoadFailedKeepsImageAndSuccess(t *testing.T) {
	form := newTestForm(t, &fakeExecutor{fn: chartResult("http://127.0.0.1:5000/output/visualization.png")})
	form.Submit(context.Background())

	assert.True(t, form.ImageLoadFailed("http://127.0.0.1:5000/output/visualization.png"))
	state := form.State()

	assert.Equal(t, MessageImageLoadFailed, state.Error)
	assert.Equal(t, MessageChartGenerated, state.Success)
	assert.Equal(t, "http://127.0.0.1:5000/output/visualization.png", state.Image)
}

func TestImageLoadFailedIgnored(t *testing.T) {
	const chart = "http://127.0.0.1:5000/output/visualization.png"

	tests := []struct {
		name  string
		setup func(form *Form)
		image string
		want  State
	}{
		{
			name:  "No image shown",
			setup: func(form *Form) {},
			image: chart,
			want:  State{},
		},
		{
			name:  "No image shown and empty report",
			setup: func(form *Form) {},
			image: "",
			want:  State{},
		},
		{
			name:  "Failed submission",
			setup: func(form *Form) { form.Submit(context.Background()) },
			image: chart,
			want:  State{Error: MessageImageNotFound},
		},
		{
			name: "Different chart",
			setup: func(form *Form) {
				form.EditCode("chart")
				form.Submit(context.Background())
			},
			image: "http://127.0.0.1:5000/output/old.png",
			want:  State{Image: chart, Success: MessageChartGenerated},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := &fakeExecutor{fn: func(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
				if req.Code == "chart" {
					return ExecuteResult{ImageURL: chart}, nil
				}
				return ExecuteResult{}, ErrImageNotFound
			}}
			form := newTestForm(t, executor)
			tt.setup(form)

			assert.False(t, form.ImageLoadFailed(tt.image))
			state := form.State()
			assert.Equal(t, tt.want.Image, state.Image)
			assert.Equal(t, tt.want.Success, state.Success)
			assert.Equal(t, tt.want.Error, state.Error)
		})
	}
}

func TestImageLoadFailedIgnoredWhileSubmitPending(t *testing.T) {
	const oldChart = "http://127.0.0.1:5000/output/old.png"
	const newChart = "http://127.0.0.1:5000/output/new.png"

	started := make(chan struct{})
	release := make(chan struct{})
	executor := &fakeExecutor{fn: chartResult(oldChart)}
	form := newTestForm(t, executor)
	form.Submit(context.Background())

	executor.fn = func(context.Context, ExecuteRequest) (ExecuteResult, error) {
		close(started)
		<-release
		return ExecuteResult{ImageURL: newChart}, nil
	}
	done := make(chan State)
	go func() {
		done <- form.Submit(context.Background())
	}()
	<-started

	// The old page's image failing while the new chart is being generated
	require.True(t, form.State().Pending)
	assert.False(t, form.ImageLoadFailed(oldChart))
	assert.False(t, form.ImageLoadFailed(""))
	assert.Empty(t, form.State().Error)

	close(release)
	state := <-done

	assert.Equal(t, newChart, state.Image)
	assert.Equal(t, MessageChartGenerated, state.Success)
	assert.Empty(t, state.Error)
}

func TestSubmitDiscardsSupersededOutcome(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	executor := &fakeExecutor{}
	executor.fn = func(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
		if req.Code == "slow" {
			close(started)
			<-release
			return ExecuteResult{ImageURL: "http://127.0.0.1:5000/output/slow.png"}, nil
		}
		return ExecuteResult{}, &BackendError{StatusCode: http.StatusBadRequest, Message: "syntax error"}
	}
	form := newTestForm(t, executor)
	form.EditCode("slow")

	done := make(chan State)
	go func() {
		done <- form.Submit(context.Background())
	}()
	<-started
	assert.True(t, form.State().Pending)

	form.EditCode("fast")
	latest := form.Submit(context.Background())
	assert.Equal(t, "syntax error", latest.Error)
	assert.False(t, latest.Pending)

	close(release)
	stale := <-done

	// The slow submission started first, so its chart must not win
	assert.Equal(t, "syntax error", stale.Error)
	assert.Empty(t, stale.Image)
	assert.Empty(t, stale.Success)
	assert.Equal(t, stale, form.State())
}

func TestSubmitLogsTrace(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	form := NewForm(&fakeExecutor{fn: chartResult("http://127.0.0.1:5000/output/visualization.png")}, nil, logger)

	form.Submit(context.Background())

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Submit started", entries[0].Message)
	assert.Equal(t, "Chart generated", entries[1].Message)
	assert.Equal(t, "http://127.0.0.1:5000/output/visualization.png", entries[1].Data["image_url"])
}
