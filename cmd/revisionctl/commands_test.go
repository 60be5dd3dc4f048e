package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gogotex/gogotex/backend/autosave/internal/revision"
	"github.com/gogotex/gogotex/backend/autosave/internal/revision/kv"
	"github.com/gogotex/gogotex/backend/autosave/internal/revision/service"
)

// seeded returns an opener over an in-memory store holding two revisions of
// "post-1" and one of "page-1".
func seeded(t *testing.T) (opener, *kv.MemoryBackend) {
	t.Helper()
	backend := kv.NewMemoryBackend(kv.Unlimited)
	clock := int64(1_000)
	svc, err := service.New(service.Options{
		Backend: backend,
		Now: func() time.Time {
			return time.UnixMilli(clock)
		},
	})
	require.NoError(t, err)
	ctx := context.Background()
	for _, s := range []struct {
		at    int64
		typ   revision.DocumentType
		id    string
		title string
	}{
		{1_000, revision.TypePost, "post-1", "Launch"},
		{2_000, revision.TypePost, "post-1", "Launch"},
		{3_000, revision.TypePage, "page-1", "About"},
	} {
		clock = s.at
		_, err := svc.Save(ctx, s.typ, revision.Revision{ID: s.id, Title: s.title})
		require.NoError(t, err)
	}
	svc.Stop()

	return func(context.Context) (*service.Service, func(), error) {
		s, err := service.New(service.Options{Backend: backend})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Stop, nil
	}, backend
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestList_Table(t *testing.T) {
	open, _ := seeded(t)
	out, err := run(t, open, "ls")
	require.NoError(t, err)
	require.Contains(t, out, "KEY")
	require.Contains(t, out, "revision-post-1-1000")
	require.Contains(t, out, "revision-page-1-3000")
}

func TestList_JSONWithPrefix(t *testing.T) {
	open, _ := seeded(t)
	out, err := run(t, open, "ls", "--prefix", "revision-post-1-", "-o", "json")
	require.NoError(t, err)

	var rows []revisionRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	require.Equal(t, "revision-post-1-1000", rows[0].Key)
	require.Equal(t, "revision-post-1-2000", rows[1].Key)
	require.Equal(t, "Launch", rows[0].Title)
}

func TestSummaries_YAML(t *testing.T) {
	open, _ := seeded(t)
	out, err := run(t, open, "summaries", "-o", "yaml")
	require.NoError(t, err)

	var groups []revision.SummaryGroup
	require.NoError(t, yaml.Unmarshal([]byte(out), &groups))
	require.Len(t, groups, 2)
	require.Equal(t, "About", groups[0].Title)
	require.Equal(t, "Launch", groups[1].Title)
	require.Equal(t, "revision-post-1-2000", groups[1].Revisions[0].Key)
}

func TestShow(t *testing.T) {
	open, _ := seeded(t)
	out, err := run(t, open, "show", "revision-page-1-3000")
	require.NoError(t, err)

	var rev revision.Revision
	require.NoError(t, json.Unmarshal([]byte(out), &rev))
	require.Equal(t, "page-1", rev.ID)
	require.Equal(t, revision.TypePage, rev.Type)

	_, err = run(t, open, "show", "revision-missing-1")
	require.Error(t, err)
}

func TestRemoveAndClear(t *testing.T) {
	open, backend := seeded(t)
	ctx := context.Background()

	out, err := run(t, open, "rm", "revision-post-1-1000")
	require.NoError(t, err)
	require.Contains(t, out, "removed revision-post-1-1000")
	_, ok, _ := backend.Get(ctx, "revision-post-1-1000")
	require.False(t, ok)

	_, err = run(t, open, "clear")
	require.Error(t, err)

	out, err = run(t, open, "clear", "--yes")
	require.NoError(t, err)
	require.Contains(t, out, "cleared 2 revisions")
	keys, err := backend.Keys(ctx, "revision-")
	require.NoError(t, err)
	require.Equal(t, []string{revision.DefaultIndexKey}, keys)
}

func TestReconcile(t *testing.T) {
	open, backend := seeded(t)
	ctx := context.Background()
	require.NoError(t, backend.Remove(ctx, "revision-post-1-1000"))
	require.NoError(t, backend.Set(ctx, "revision-stray-9", `{}`))

	out, err := run(t, open, "reconcile", "-o", "json")
	require.NoError(t, err)
	var rep service.ReconcileReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, []string{"revision-post-1-1000"}, rep.Dangling)
	require.Equal(t, []string{"revision-stray-9"}, rep.Orphans)
}

func TestUnknownOutputFormat(t *testing.T) {
	open, _ := seeded(t)
	_, err := run(t, open, "ls", "-o", "xml")
	require.Error(t, err)
}
