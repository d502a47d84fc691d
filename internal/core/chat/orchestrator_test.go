package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
	"github.com/econlens/econlens/internal/models"
)

type scriptStream struct {
	tokens []string
	next   int
	closed bool
}

func (s *scriptStream) Recv() (string, error) {
	if s.next >= len(s.tokens) {
		return "", io.EOF
	}
	t := s.tokens[s.next]
	s.next++
	return t, nil
}

func (s *scriptStream) Close() error {
	s.closed = true
	return nil
}

type fakeModel struct {
	lastReq core.ChatModelRequest
	stream  *scriptStream
	err     error
	calls   int
}

func (f *fakeModel) StreamChat(_ context.Context, req core.ChatModelRequest) (core.TokenStream, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

type appended struct {
	role    string
	content string
}

type fakeMessages struct {
	core.MessageStore

	appends   []appended
	appendErr error
	recent    []models.ChatMessage
}

func (f *fakeMessages) AppendMessage(_ context.Context, _, role, content, _ string) (*models.ChatMessage, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	f.appends = append(f.appends, appended{role: role, content: content})
	return &models.ChatMessage{ID: "m1", Role: role, Content: content}, nil
}

func (f *fakeMessages) ListRecentMessages(context.Context, string, int) ([]models.ChatMessage, error) {
	return f.recent, nil
}

type fakeCache struct {
	window  []models.CachedMessage
	pushes  []models.CachedMessage
	getErr  error
	pushErr error
}

func (f *fakeCache) Get(context.Context, string) ([]models.CachedMessage, error) {
	return f.window, f.getErr
}

func (f *fakeCache) Push(_ context.Context, _ string, msg models.CachedMessage) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, msg)
	return nil
}

func (f *fakeCache) Reset(context.Context, string) error { return nil }

type stubEmbedder struct{}

func (stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func (stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

type stubVectors struct{ core.VectorStore }

func drain(t *testing.T, s core.TokenStream) string {
	t.Helper()
	var b strings.Builder
	for {
		tok, err := s.Recv()
		if err == io.EOF {
			return b.String()
		}
		require.NoError(t, err)
		b.WriteString(tok)
	}
}

func userTurn(content string) []core.Turn {
	return []core.Turn{{Role: "user", Content: content}}
}

func TestStreamValidatesRequest(t *testing.T) {
	model := &fakeModel{stream: &scriptStream{}}
	msgs := &fakeMessages{}
	o := NewOrchestrator(model, msgs, &fakeCache{}, stubEmbedder{}, stubVectors{})

	cases := []Request{
		{UserID: "u1", Messages: userTurn("hi")}, // no conversation id
		{ConversationID: "c1", UserID: "u1"},     // no messages
		{ConversationID: "c1", UserID: "u1", Messages: []core.Turn{{Role: "assistant", Content: "hi"}}},
		{ConversationID: "c1", UserID: "u1", Messages: userTurn("   ")},
	}
	for _, req := range cases {
		_, err := o.Stream(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
	assert.Zero(t, model.calls, "validation failures must not reach the model")
	assert.Empty(t, msgs.appends)
}

func TestStreamUserPersistFailureIsFatal(t *testing.T) {
	model := &fakeModel{stream: &scriptStream{}}
	msgs := &fakeMessages{appendErr: errors.New("db down")}
	o := NewOrchestrator(model, msgs, &fakeCache{}, stubEmbedder{}, stubVectors{})

	_, err := o.Stream(context.Background(), Request{
		ConversationID: "c1", UserID: "u1", Messages: userTurn("hello"),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.Zero(t, model.calls)
}

func TestStreamHappyPathRecordsBothSides(t *testing.T) {
	model := &fakeModel{stream: &scriptStream{tokens: []string{"Infla", "tion ", "is rising."}}}
	msgs := &fakeMessages{}
	cache := &fakeCache{}
	o := NewOrchestrator(model, msgs, cache, stubEmbedder{}, stubVectors{})

	stream, err := o.Stream(context.Background(), Request{
		ConversationID: "c1",
		UserID:         "u1",
		Messages:       userTurn("What is happening to inflation?"),
	})
	require.NoError(t, err)

	got := drain(t, stream)
	assert.Equal(t, "Inflation is rising.", got)

	require.Len(t, msgs.appends, 2)
	assert.Equal(t, appended{role: "user", content: "What is happening to inflation?"}, msgs.appends[0])
	assert.Equal(t, appended{role: "assistant", content: "Inflation is rising."}, msgs.appends[1])

	require.Len(t, cache.pushes, 2)
	assert.Equal(t, "user", cache.pushes[0].Role)
	assert.Equal(t, "assistant", cache.pushes[1].Role)

	assert.InDelta(t, defaultTemperature, model.lastReq.Temperature, 0.001)
	assert.EqualValues(t, defaultMaxTokens, model.lastReq.MaxTokens)
	assert.Contains(t, model.lastReq.System, "EconLens")
}

func TestStreamUnknownPersonaFallsBack(t *testing.T) {
	model := &fakeModel{stream: &scriptStream{}}
	o := NewOrchestrator(model, &fakeMessages{}, &fakeCache{}, stubEmbedder{}, stubVectors{})

	stream, err := o.Stream(context.Background(), Request{
		ConversationID: "c1",
		UserID:         "u1",
		Persona:        "behavioral", // not a known school
		Messages:       userTurn("hi"),
	})
	require.NoError(t, err)
	drain(t, stream)

	assert.Contains(t, model.lastReq.System, "careful economic analyst")
}

func TestStreamVaultModeBindsSearchTool(t *testing.T) {
	model := &fakeModel{stream: &scriptStream{}}
	o := NewOrchestrator(model, &fakeMessages{}, &fakeCache{}, stubEmbedder{}, stubVectors{})

	stream, err := o.Stream(context.Background(), Request{
		ConversationID: "c1",
		UserID:         "u1",
		VaultID:        "vault-7",
		Messages:       userTurn("summarize my documents"),
	})
	require.NoError(t, err)
	drain(t, stream)

	var names []string
	for _, d := range model.lastReq.Tools {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "search_vault")
}

func TestStreamWorkspaceModeOmitsSearchTool(t *testing.T) {
	model := &fakeModel{stream: &scriptStream{}}
	o := NewOrchestrator(model, &fakeMessages{}, &fakeCache{}, stubEmbedder{}, stubVectors{})

	stream, err := o.Stream(context.Background(), Request{
		ConversationID: "c1",
		UserID:         "u1",
		Messages:       userTurn("hello"),
	})
	require.NoError(t, err)
	drain(t, stream)

	for _, d := range model.lastReq.Tools {
		assert.NotEqual(t, "search_vault", d.Name)
	}
}

func TestStreamCallerHistoryReachesModel(t *testing.T) {
	model := &fakeModel{stream: &scriptStream{}}
	// Empty cache and empty store: the caller's transcript is all there is.
	o := NewOrchestrator(model, &fakeMessages{}, &fakeCache{}, stubEmbedder{}, stubVectors{})

	turns := []core.Turn{
		{Role: "user", Content: "what is gdp"},
		{Role: "assistant", Content: "gross domestic product"},
		{Role: "user", Content: "and real gdp?"},
	}
	stream, err := o.Stream(context.Background(), Request{
		ConversationID: "c1",
		UserID:         "u1",
		Messages:       turns,
	})
	require.NoError(t, err)
	drain(t, stream)

	require.Len(t, model.lastReq.History, 3, "every caller-supplied turn must reach the model")
	assert.Equal(t, turns, model.lastReq.History)
}

func TestStreamHistoryFromCacheWindow(t *testing.T) {
	model := &fakeModel{stream: &scriptStream{}}
	cache := &fakeCache{window: []models.CachedMessage{
		{Role: "user", Content: "what is gdp", Timestamp: time.Now()},
		{Role: "assistant", Content: "gross domestic product", Timestamp: time.Now()},
	}}
	o := NewOrchestrator(model, &fakeMessages{}, cache, stubEmbedder{}, stubVectors{})

	stream, err := o.Stream(context.Background(), Request{
		ConversationID: "c1",
		UserID:         "u1",
		Messages:       userTurn("and real gdp?"),
	})
	require.NoError(t, err)
	drain(t, stream)

	require.Len(t, model.lastReq.History, 3)
	assert.Equal(t, "what is gdp", model.lastReq.History[0].Content)
	assert.Equal(t, core.Turn{Role: "user", Content: "and real gdp?"}, model.lastReq.History[2])
}

func TestStreamHistoryRebuiltFromStoreOnCacheMiss(t *testing.T) {
	model := &fakeModel{stream: &scriptStream{}}
	msgs := &fakeMessages{recent: []models.ChatMessage{
		// Most-recent-first, as the store returns them.
		{Role: "assistant", Content: "second"},
		{Role: "user", Content: "first"},
	}}
	o := NewOrchestrator(model, msgs, &fakeCache{}, stubEmbedder{}, stubVectors{})

	stream, err := o.Stream(context.Background(), Request{
		ConversationID: "c1",
		UserID:         "u1",
		Messages:       userTurn("third"),
	})
	require.NoError(t, err)
	drain(t, stream)

	require.Len(t, model.lastReq.History, 3)
	assert.Equal(t, "first", model.lastReq.History[0].Content)
	assert.Equal(t, "second", model.lastReq.History[1].Content)
	assert.Equal(t, "third", model.lastReq.History[2].Content)
}

func TestStreamAssistantPersistFailureDoesNotBreakStream(t *testing.T) {
	model := &fakeModel{stream: &scriptStream{tokens: []string{"ok"}}}
	msgs := &fakeMessages{}
	o := NewOrchestrator(model, msgs, &fakeCache{pushErr: errors.New("redis gone")}, stubEmbedder{}, stubVectors{})

	stream, err := o.Stream(context.Background(), Request{
		ConversationID: "c1",
		UserID:         "u1",
		Messages:       userTurn("hi"),
	})
	require.NoError(t, err)

	assert.Equal(t, "ok", drain(t, stream))
	// Both sides still reach the durable store even with the cache down.
	require.Len(t, msgs.appends, 2)
}

func TestStreamCloseBeforeEOFSkipsAssistantRecord(t *testing.T) {
	model := &fakeModel{stream: &scriptStream{tokens: []string{"partial", " reply"}}}
	msgs := &fakeMessages{}
	o := NewOrchestrator(model, msgs, &fakeCache{}, stubEmbedder{}, stubVectors{})

	stream, err := o.Stream(context.Background(), Request{
		ConversationID: "c1",
		UserID:         "u1",
		Messages:       userTurn("hi"),
	})
	require.NoError(t, err)

	tok, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", tok)
	require.NoError(t, stream.Close())

	require.Len(t, msgs.appends, 1)
	assert.Equal(t, "user", msgs.appends[0].role)
	assert.True(t, model.stream.closed)
}
