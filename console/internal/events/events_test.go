package events

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsv-labs/gsv/console/internal/buffer"
	"github.com/gsv-labs/gsv/console/internal/run"
)

func doc(t *testing.T, raw string) Doc {
	t.Helper()
	d, err := ParseDoc([]byte(raw))
	require.NoError(t, err)
	return d
}

func TestClassifySynonyms(t *testing.T) {
	tests := []struct {
		raw  string
		want State
	}{
		{"queued", StateQueued},
		{"pending", StateQueued},
		{"started", StateStarted},
		{"running", StateStarted},
		{"in_progress", StateStarted},
		{"delta", StateStreaming},
		{"partial", StateStreaming},
		{"streaming", StateStreaming},
		{"final", StateFinal},
		{"done", StateFinal},
		{"complete", StateFinal},
		{"completed", StateFinal},
		{"finished", StateFinal},
		{"finalized", StateFinal},
		{"complete_success", StateFinal},
		{"error", StateError},
		{"failed", StateError},
		{"aborted", StateError},
		{"cancelled", StateError},
		{"timeout", StateError},
		{"  DONE ", StateFinal},
		{"Delta", StateStreaming},
		{"", StateUnknown},
		{"thinking", StateUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.raw))
		})
	}
}

func TestStateRunPhase(t *testing.T) {
	p, ok := StateStarted.RunPhase()
	assert.True(t, ok)
	assert.Equal(t, run.Running, p)

	p, ok = StateFinal.RunPhase()
	assert.True(t, ok)
	assert.Equal(t, run.Finalizing, p)

	p, ok = StateError.RunPhase()
	assert.True(t, ok)
	assert.Equal(t, run.Failed, p)

	_, ok = StateUnknown.RunPhase()
	assert.False(t, ok)
}

func TestRunID(t *testing.T) {
	assert.Equal(t, "r1", RunID(doc(t, `{"runId":"  r1 "}`)))
	assert.Equal(t, "", RunID(doc(t, `{"runId":"   "}`)))
	assert.Equal(t, "", RunID(doc(t, `{"runId":5}`)))
	assert.Equal(t, "", RunID(doc(t, `{}`)))
}

func TestParseDocRejectsNonObject(t *testing.T) {
	_, err := ParseDoc([]byte(`[1,2]`))
	assert.Error(t, err)

	d, err := ParseDoc(nil)
	require.NoError(t, err)
	assert.Empty(t, d)
}

func TestExtractResolutionOrder(t *testing.T) {
	c := Extract(doc(t, `{"message":{"content":"from content","text":"ignored"},"text":"ignored"}`))
	assert.Equal(t, "from content", c.Text)

	c = Extract(doc(t, `{"message":{"text":"from message"},"text":"ignored"}`))
	assert.Equal(t, "from message", c.Text)

	c = Extract(doc(t, `{"text":"top level"}`))
	assert.Equal(t, "top level", c.Text)

	c = Extract(doc(t, `{"state":"final"}`))
	assert.True(t, c.Empty())
}

func TestExtractBlocks(t *testing.T) {
	c := Extract(doc(t, `{"message":{"content":[
		{"type":"text","text":"Hello"},
		{"type":"text","text":""},
		{"type":"image","url":"x"},
		{"type":"toolCall","name":"read","arguments":{"path":"/tmp/a","limit":10,"follow":true,"extra":null}},
		{"type":"toolCall","arguments":{}},
		{"type":"text","text":"World"}
	]}}`))
	assert.Equal(t, "Hello\nWorld", c.Text)
	require.Len(t, c.ToolCalls, 1)
	assert.Equal(t, "read", c.ToolCalls[0].Name)
	assert.Equal(t, `extra=null  follow=true  limit=10  path="/tmp/a"`, c.ToolCalls[0].Arguments)
	assert.Equal(t, `▸ read  extra=null  follow=true  limit=10  path="/tmp/a"`, c.ToolCalls[0].Line())
}

func TestExtractToolOnlyContent(t *testing.T) {
	c := Extract(doc(t, `{"message":{"content":[{"type":"toolCall","name":"ls"}]}}`))
	assert.Equal(t, "", c.Text)
	assert.False(t, c.Empty())
	assert.Equal(t, "▸ ls", c.ToolCalls[0].Line())
}

func TestFormatToolArgsTruncation(t *testing.T) {
	long := strings.Repeat("a", 61)
	got := formatToolArgs(map[string]any{"cmd": long})
	assert.Equal(t, `cmd="`+strings.Repeat("a", 57)+`..."`, got)

	exact := strings.Repeat("b", 60)
	assert.Equal(t, `cmd="`+exact+`"`, formatToolArgs(map[string]any{"cmd": exact}))

	nested := map[string]any{"list": []any{strings.Repeat("x", 40), strings.Repeat("y", 40)}}
	got = formatToolArgs(nested)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, len("list=")+57+3, len(got))

	assert.Equal(t, "raw args", formatToolArgs("raw args"))
	assert.Equal(t, `[1,2]`, formatToolArgs([]any{1, 2}))
}

func TestFormatToolArgsNoHTMLEscape(t *testing.T) {
	got := formatToolArgs(map[string]any{"q": map[string]any{"html": "<b>&</b>"}})
	assert.Equal(t, `q={"html":"<b>&</b>"}`, got)
}

func TestFormatContent(t *testing.T) {
	content := []any{
		map[string]any{"type": "text", "text": "done"},
		map[string]any{"type": "toolCall", "name": "bash"},
	}
	assert.Equal(t, "done\n[Tool: bash]", FormatContent(content))
	assert.Equal(t, "plain", FormatContent("plain"))
}

func TestParseSendResult(t *testing.T) {
	res := ParseSendResult(doc(t, `{"status":"started","runId":"run-1"}`))
	assert.False(t, res.Directive)
	assert.Equal(t, "run-1", res.RunID)
	assert.True(t, res.HasPhase)
	assert.Equal(t, run.Running, res.Phase)

	res = ParseSendResult(doc(t, `{"status":"Queued","runId":"run-2"}`))
	assert.Equal(t, run.Queued, res.Phase)

	res = ParseSendResult(doc(t, `{"status":"directive-only","response":"Model set to opus"}`))
	assert.True(t, res.Directive)
	assert.Equal(t, "Model set to opus", res.Response)
	assert.Empty(t, res.RunID)

	res = ParseSendResult(doc(t, `{"status":"error","error":"agent offline"}`))
	assert.Equal(t, "agent offline", res.Error)
	assert.False(t, res.HasPhase)

	res = ParseSendResult(doc(t, `{"status":"started","runId":"r","error":"warning"}`))
	assert.Equal(t, "warning", res.Error)
	assert.Equal(t, "r", res.RunID)

	res = ParseSendResult(doc(t, `{"status":"mystery"}`))
	assert.False(t, res.Directive)
	assert.False(t, res.HasPhase)
}

func TestHistoryItemsToolResult(t *testing.T) {
	items := HistoryItems(doc(t, `{"role":"toolResult","toolName":"bash","content":"line1\nline2"}`))
	require.Len(t, items, 1)
	assert.Equal(t, buffer.Tool, items[0].Role)
	assert.Equal(t, "▸ bash result\nline1\nline2", items[0].Text)

	items = HistoryItems(doc(t, `{"role":"toolResult","isError":true,"content":[{"type":"text","text":"boom"}]}`))
	require.Len(t, items, 1)
	assert.Equal(t, buffer.Error, items[0].Role)
	assert.Equal(t, "▸ tool error\nboom", items[0].Text)

	items = HistoryItems(doc(t, `{"role":"toolResult","toolName":"ls"}`))
	assert.Equal(t, "▸ ls result", items[0].Text)
}

func TestHistoryItemsAssistant(t *testing.T) {
	items := HistoryItems(doc(t, `{"role":"assistant","content":[
		{"type":"text","text":"  Let me check.  "},
		{"type":"toolCall","name":"read","arguments":{"path":"a.go"}}
	]}`))
	require.Len(t, items, 2)
	assert.Equal(t, HistoryItem{Role: buffer.Assistant, Text: "Let me check."}, items[0])
	assert.Equal(t, HistoryItem{Role: buffer.Tool, Text: `▸ read  path="a.go"`}, items[1])

	assert.Empty(t, HistoryItems(doc(t, `{"role":"assistant","content":"   "}`)))
}

func TestHistoryItemsOtherRoles(t *testing.T) {
	items := HistoryItems(doc(t, `{"role":"user","content":"hi there"}`))
	assert.Equal(t, []HistoryItem{{Role: buffer.User, Text: "hi there"}}, items)

	items = HistoryItems(doc(t, `{"role":"system","text":"  compacted  "}`))
	assert.Equal(t, []HistoryItem{{Role: buffer.SystemRole, Text: "compacted"}}, items)

	items = HistoryItems(doc(t, `{"role":"error","content":"failed"}`))
	assert.Equal(t, buffer.Error, items[0].Role)

	assert.Empty(t, HistoryItems(doc(t, `{"role":"user"}`)))
}

func TestTruncateToolResult(t *testing.T) {
	text := "▸ bash result\n1\n2\n3\n4\n5"
	assert.Equal(t, "▸ bash result\n1\n2\n3\n  (2 more lines)", TruncateToolResult(text))
	assert.Equal(t, "▸ bash result\n1\n2", TruncateToolResult("▸ bash result\n1\n2"))
	assert.Equal(t, "▸ bash result", TruncateToolResult("▸ bash result\n"))
	assert.Equal(t, "▸ bash", TruncateToolResult("▸ bash"))
}
