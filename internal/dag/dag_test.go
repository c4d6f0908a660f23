package dag

import (
	"reflect"
	"testing"
)

// league builds: team.sq declares team; player.sq declares player and
// references team; stats.sq references player and team.
func league() *Graph {
	g := NewGraph()
	g.AddFile("team.sq", []string{"team"}, nil)
	g.AddFile("player.sq", []string{"Player"}, []string{"TEAM", "player"})
	g.AddFile("stats.sq", nil, []string{"player", "team"})
	return g
}

func TestGraph_Edges(t *testing.T) {
	g := league()

	if g.FileCount() != 3 {
		t.Errorf("expected 3 files, got %d", g.FileCount())
	}
	if g.EdgeCount() != 3 {
		t.Errorf("expected 3 edges, got %d", g.EdgeCount())
	}

	if got := g.Dependencies("stats.sq"); !reflect.DeepEqual(got, []string{"player.sq", "team.sq"}) {
		t.Errorf("unexpected dependencies of stats.sq: %v", got)
	}
	if got := g.Dependents("team.sq"); !reflect.DeepEqual(got, []string{"player.sq", "stats.sq"}) {
		t.Errorf("unexpected dependents of team.sq: %v", got)
	}
	if got := g.Dependencies("player.sq"); !reflect.DeepEqual(got, []string{"team.sq"}) {
		t.Errorf("self reference must not create an edge, got %v", got)
	}
}

func TestGraph_Referencing(t *testing.T) {
	g := league()

	got := g.Referencing(map[string]bool{"PLAYER": true})
	want := []string{"player.sq", "stats.sq"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Referencing(player) = %v, want %v", got, want)
	}

	if got := g.Referencing(nil); len(got) != 0 {
		t.Errorf("expected no files for no relations, got %v", got)
	}
	if got := g.Referencing(map[string]bool{"team": false}); len(got) != 0 {
		t.Errorf("false entries must be ignored, got %v", got)
	}
}

func TestGraph_Unresolved(t *testing.T) {
	g := NewGraph()
	g.AddFile("a.sq", []string{"a"}, []string{"a", "missing", "Other"})

	got := g.Unresolved("a.sq")
	if !reflect.DeepEqual(got, []string{"missing", "other"}) {
		t.Errorf("unexpected unresolved relations: %v", got)
	}
}

func TestGraph_Affected(t *testing.T) {
	g := league()
	g.AddFile("misc.sq", nil, nil)

	got := g.Affected([]string{"team.sq", "unknown.sq"})
	want := []string{"player.sq", "stats.sq", "team.sq"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Affected = %v, want %v", got, want)
	}
}

func TestGraph_Levels(t *testing.T) {
	g := league()

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]string{{"team.sq"}, {"player.sq"}, {"stats.sq"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("Levels = %v, want %v", levels, want)
	}
}

func TestGraph_Levels_Empty(t *testing.T) {
	levels, err := NewGraph().Levels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(levels) != 0 {
		t.Errorf("expected no levels, got %v", levels)
	}
}

func TestGraph_Cycle(t *testing.T) {
	g := NewGraph()
	g.AddFile("a.sq", []string{"a"}, []string{"b"})
	g.AddFile("b.sq", []string{"b"}, []string{"a"})

	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("expected a cycle")
	}
	if len(path) < 2 {
		t.Errorf("expected a cycle path, got %v", path)
	}
	if _, err := g.Levels(); err == nil {
		t.Error("expected Levels to fail on a cycle")
	}
}

func TestGraph_AddFileAgainRelinks(t *testing.T) {
	g := NewGraph()
	g.AddFile("a.sq", []string{"a"}, nil)
	g.AddFile("b.sq", nil, []string{"c"})
	if g.EdgeCount() != 0 {
		t.Fatalf("expected no edges, got %d", g.EdgeCount())
	}

	g.AddFile("c.sq", []string{"c"}, nil)
	if got := g.Dependents("c.sq"); !reflect.DeepEqual(got, []string{"b.sq"}) {
		t.Errorf("expected edge after adding declaring file, got %v", got)
	}
}
