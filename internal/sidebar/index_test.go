package sidebar_test

import (
	"errors"
	"testing"

	"github.com/jcdickinson/rsidebar/internal/sidebar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flycheckDocs = "Flycheck wraps the shared state and communication machinery used for running\n" +
	"`cargo check` (or other compatible command) and providing diagnostics based on\n" +
	"the output.\n" +
	"The spawned thread is shut down when this struct is dropped."

const flycheckSummary = "Flycheck wraps the shared state and communication machinery used for running " +
	"`cargo check` (or other compatible command) and providing diagnostics based on the output. " +
	"The spawned thread is shut down when this struct is dropped."

const urlDocs = "Returns a `Url` object from a given path, will lowercase drive letters if present.\n" +
	"This will only happen when processing windows paths.\n" +
	"\n" +
	"When processing non-windows path, this is essentially the same as `Url::from_file_path`."

const urlSummary = "Returns a `Url` object from a given path, will lowercase drive letters if present. " +
	"This will only happen when processing windows paths."

// flycheckDecls lists the ra_flycheck module in source order.
func flycheckDecls() []sidebar.Declaration {
	return []sidebar.Declaration{
		{Kind: sidebar.KindEnum, Name: "CheckCommand"},
		{Kind: sidebar.KindEnum, Name: "CheckTask"},
		{Kind: sidebar.KindEnum, Name: "FlycheckConfig"},
		{Kind: sidebar.KindFn, Name: "url_from_path_with_drive_lowercasing", Docs: urlDocs},
		{Kind: sidebar.KindStruct, Name: "DiagnosticWithFixes"},
		{Kind: sidebar.KindStruct, Name: "Flycheck", Docs: flycheckDocs},
	}
}

func TestBuild_Flycheck(t *testing.T) {
	t.Parallel()

	idx := sidebar.Build(flycheckDecls())

	want := sidebar.Index{
		sidebar.KindEnum: {
			{Name: "CheckCommand"},
			{Name: "CheckTask"},
			{Name: "FlycheckConfig"},
		},
		sidebar.KindFn: {
			{Name: "url_from_path_with_drive_lowercasing", Summary: urlSummary},
		},
		sidebar.KindStruct: {
			{Name: "DiagnosticWithFixes", Summary: ""},
			{Name: "Flycheck", Summary: flycheckSummary},
		},
	}
	assert.Equal(t, want, idx)
	assert.Equal(t, []sidebar.Kind{sidebar.KindEnum, sidebar.KindFn, sidebar.KindStruct}, idx.Kinds())
	assert.Equal(t, 6, idx.Len())
	require.NoError(t, idx.Validate())
}

func TestBuild_Empty(t *testing.T) {
	t.Parallel()

	idx := sidebar.Build(nil)
	assert.Empty(t, idx)
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, "initSidebarItems({});", string(idx.JS()))
}

func TestBuild_PreservesDeclarationOrder(t *testing.T) {
	t.Parallel()

	idx := sidebar.Build([]sidebar.Declaration{
		{Kind: sidebar.KindStruct, Name: "Zeta"},
		{Kind: sidebar.KindStruct, Name: "Alpha"},
		{Kind: sidebar.KindStruct, Name: "Mid"},
	})
	names := make([]string, 0, 3)
	for _, e := range idx[sidebar.KindStruct] {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, names)
}

func TestBuild_SortEntries(t *testing.T) {
	t.Parallel()

	idx := sidebar.Build([]sidebar.Declaration{
		{Kind: sidebar.KindStruct, Name: "Zeta"},
		{Kind: sidebar.KindStruct, Name: "Alpha"},
	}, sidebar.SortEntries())
	assert.Equal(t, "Alpha", idx[sidebar.KindStruct][0].Name)
	assert.Equal(t, "Zeta", idx[sidebar.KindStruct][1].Name)
}

func TestBuilder_Duplicates(t *testing.T) {
	t.Parallel()

	b := sidebar.NewBuilder()
	assert.True(t, b.Add(sidebar.Declaration{Kind: sidebar.KindFn, Name: "run", Docs: "First."}))
	assert.False(t, b.Add(sidebar.Declaration{Kind: sidebar.KindFn, Name: "run", Docs: "Second."}))
	// The same name under another kind is a separate entry.
	assert.True(t, b.Add(sidebar.Declaration{Kind: sidebar.KindMacro, Name: "run"}))
	assert.False(t, b.Add(sidebar.Declaration{Kind: sidebar.KindFn}))

	idx := b.Index()
	require.Len(t, idx[sidebar.KindFn], 1)
	assert.Equal(t, "First.", idx[sidebar.KindFn][0].Summary)
	assert.Len(t, idx[sidebar.KindMacro], 1)
}

func TestBuilder_IndexIsACopy(t *testing.T) {
	t.Parallel()

	b := sidebar.NewBuilder()
	b.Add(sidebar.Declaration{Kind: sidebar.KindFn, Name: "a"})
	first := b.Index()
	first[sidebar.KindFn][0].Name = "changed"

	assert.Equal(t, "a", b.Index()[sidebar.KindFn][0].Name)
}

func TestIndex_Validate(t *testing.T) {
	t.Parallel()

	t.Run("duplicate", func(t *testing.T) {
		idx := sidebar.Index{sidebar.KindFn: {{Name: "a"}, {Name: "a"}}}
		err := idx.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, sidebar.ErrDuplicateName))
	})

	t.Run("unknown_kind", func(t *testing.T) {
		idx := sidebar.Index{"widget": {{Name: "a"}}}
		assert.ErrorIs(t, idx.Validate(), sidebar.ErrUnknownKind)
	})

	t.Run("empty_bucket", func(t *testing.T) {
		idx := sidebar.Index{sidebar.KindFn: {}}
		assert.ErrorIs(t, idx.Validate(), sidebar.ErrEmptyBucket)
	})
}

func TestIndex_Lookup(t *testing.T) {
	t.Parallel()

	idx := sidebar.Build(flycheckDecls())
	e, ok := idx.Lookup(sidebar.KindStruct, "Flycheck")
	require.True(t, ok)
	assert.Equal(t, flycheckSummary, e.Summary)

	_, ok = idx.Lookup(sidebar.KindEnum, "Flycheck")
	assert.False(t, ok)
}

func TestIndex_DisplayKinds(t *testing.T) {
	t.Parallel()

	idx := sidebar.Build(flycheckDecls())
	assert.Equal(t, []sidebar.Kind{sidebar.KindStruct, sidebar.KindEnum, sidebar.KindFn}, idx.DisplayKinds())
}

func TestHref(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "struct.Flycheck.html", sidebar.Href(sidebar.KindStruct, "Flycheck"))
	assert.Equal(t, "fn.url_from_path_with_drive_lowercasing.html", sidebar.Href(sidebar.KindFn, "url_from_path_with_drive_lowercasing"))
	assert.Equal(t, "diagnostics/index.html", sidebar.Href(sidebar.KindModule, "diagnostics"))
}

func TestKind_Title(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Structs", sidebar.KindStruct.Title())
	assert.Equal(t, "Type Definitions", sidebar.KindTypeAlias.Title())
	assert.Equal(t, "widget", sidebar.Kind("widget").Title())
	assert.False(t, sidebar.Kind("widget").Valid())
}
