package docstore

import (
	"slices"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestBuildExpansionPlan_ZeroDepth(t *testing.T) {
	f := newFixture(t)

	for _, depth := range []int{0, -1, -10} {
		if plan := f.catalog.BuildExpansionPlan("rooms", depth); len(plan) != 0 {
			t.Errorf("depth %d: plan = %+v, want empty", depth, plan)
		}
	}
}

func TestBuildExpansionPlan_UnknownCollection(t *testing.T) {
	f := newFixture(t)

	if plan := f.catalog.BuildExpansionPlan("invoices", 3); len(plan) != 0 {
		t.Fatalf("plan = %+v, want empty", plan)
	}
}

func TestBuildExpansionPlan_OneLevel(t *testing.T) {
	f := newFixture(t)

	plan := f.catalog.BuildExpansionPlan("rooms", 1)

	var fields []string
	for _, n := range plan {
		fields = append(fields, n.Field)
		if len(n.Children) != 0 {
			t.Errorf("%s: children = %+v, want none at depth 1", n.Field, n.Children)
		}
	}
	want := []string{"hotel", "amenities", "assigned_to"}
	if !slices.Equal(fields, want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	if !plan[1].IsArray {
		t.Error("amenities should be an array reference")
	}
}

func TestBuildExpansionPlan_CycleGuard(t *testing.T) {
	f := newFixture(t)

	// rooms -> hotel -> rooms: the back edge is expanded but not descended.
	plan := f.catalog.BuildExpansionPlan("rooms", 5)

	var hotel *RelationNode
	for i := range plan {
		if plan[i].Field == "hotel" {
			hotel = &plan[i]
		}
	}
	if hotel == nil {
		t.Fatal("hotel not expanded")
	}
	var back *RelationNode
	for i := range hotel.Children {
		if hotel.Children[i].Field == "rooms" {
			back = &hotel.Children[i]
		}
	}
	if back == nil {
		t.Fatal("hotel.rooms not expanded")
	}
	if back.Path != "Hotel.Rooms" {
		t.Errorf("Path = %q, want Hotel.Rooms", back.Path)
	}
	if len(back.Children) != 0 {
		t.Errorf("hotel.rooms children = %+v, want none", back.Children)
	}
}

func TestBuildExpansionPlan_SiblingsDoNotShareVisited(t *testing.T) {
	f := newFixture(t)

	// bookings -> user and bookings -> hotel -> owner both reach users; the
	// second branch must still descend into users.
	plan := f.catalog.BuildExpansionPlan("bookings", 3)

	var user, owner *RelationNode
	for i := range plan {
		switch plan[i].Field {
		case "user":
			user = &plan[i]
		case "hotel":
			for j := range plan[i].Children {
				if plan[i].Children[j].Field == "owner" {
					owner = &plan[i].Children[j]
				}
			}
		}
	}
	if user == nil || owner == nil {
		t.Fatalf("user=%v owner=%v, want both expanded", user, owner)
	}
	if len(user.Children) == 0 {
		t.Error("bookings.user should expand users")
	}
	if len(owner.Children) == 0 {
		t.Error("bookings.hotel.owner should expand users")
	}
}

func TestBuildExpansionPlan_UnresolvedTargetWarns(t *testing.T) {
	f := newFixture(t)

	plan := f.catalog.BuildExpansionPlan("users", 1)

	for _, n := range plan {
		if n.Field == "subscription" {
			t.Fatalf("unresolved subscription should be skipped, got %+v", n)
		}
	}
	logs := f.logs.String()
	if !strings.Contains(logs, "unresolved reference") || !strings.Contains(logs, "target=subscriptions") {
		t.Fatalf("expected unresolved reference warning, logs: %s", logs)
	}
	if !strings.Contains(logs, "level=WARN") {
		t.Errorf("warning should be logged at WARN, logs: %s", logs)
	}
}

func TestPreloadPaths(t *testing.T) {
	plan := []RelationNode{
		{Field: "hotel", Path: "Hotel", Children: []RelationNode{
			{Field: "owner", Path: "Hotel.Owner"},
		}},
		{Field: "amenities", Path: "Amenities"},
	}
	want := []string{"Hotel", "Hotel.Owner", "Amenities"}
	if got := PreloadPaths(plan); !slices.Equal(got, want) {
		t.Fatalf("PreloadPaths() = %v, want %v", got, want)
	}
}

// planHolds checks that no descended node revisits a collection on its path
// and that the plan is no deeper than depth.
func planHolds(nodes []RelationNode, path []string, depth int) bool {
	if len(nodes) > 0 && depth <= 0 {
		return false
	}
	for _, n := range nodes {
		if len(n.Children) > 0 && slices.Contains(path, n.Collection) {
			return false
		}
		if !planHolds(n.Children, append(slices.Clone(path), n.Collection), depth-1) {
			return false
		}
	}
	return true
}

func TestBuildExpansionPlan_Properties(t *testing.T) {
	f := newFixture(t)
	names := f.catalog.Names()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	properties.Property("plan is bounded and never descends into a collection on its path", prop.ForAll(
		func(idx, depth int) bool {
			name := names[idx%len(names)]
			plan := f.catalog.BuildExpansionPlan(name, depth)
			if depth <= 0 {
				return len(plan) == 0
			}
			return planHolds(plan, []string{name}, depth)
		},
		gen.IntRange(0, 100),
		gen.IntRange(-2, 6),
	))

	properties.Property("preload paths are unique and parents come first", prop.ForAll(
		func(idx, depth int) bool {
			name := names[idx%len(names)]
			paths := PreloadPaths(f.catalog.BuildExpansionPlan(name, depth))
			seen := make(map[string]bool, len(paths))
			for _, p := range paths {
				if seen[p] {
					return false
				}
				if i := strings.LastIndex(p, "."); i >= 0 && !seen[p[:i]] {
					return false
				}
				seen[p] = true
			}
			return true
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}
