package lead_test

import (
	"context"
	"testing"

	"github.com/vocero-ai/vocero/internal/lead"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	ok := &lead.Lead{ClientKey: "acme", Email: "a@b.mx"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	noKey := &lead.Lead{Email: "a@b.mx"}
	if err := noKey.Validate(); err == nil {
		t.Error("Validate without client_key should fail")
	}

	noContact := &lead.Lead{ClientKey: "acme"}
	if err := noContact.Validate(); err == nil {
		t.Error("Validate without any contact field should fail")
	}
}

func TestMemStore_CreateDefaultsStatus(t *testing.T) {
	t.Parallel()

	store := lead.NewMemStore()
	l := &lead.Lead{ClientKey: "acme", Phone: "5512345678"}
	if err := store.Create(context.Background(), l); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.Status != lead.StatusNew {
		t.Errorf("Status = %q, want %q", l.Status, lead.StatusNew)
	}
	if l.ID == 0 {
		t.Error("Create should assign an ID")
	}
}

func TestMemStore_ListFiltersByClient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := lead.NewMemStore()
	for _, l := range []*lead.Lead{
		{ClientKey: "acme", Email: "a@acme.mx"},
		{ClientKey: "other", Email: "b@other.mx"},
		{ClientKey: "acme", Phone: "5511112222"},
	} {
		if err := store.Create(ctx, l); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := store.List(ctx, "acme")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List returned %d leads, want 2", len(got))
	}
	for _, l := range got {
		if l.ClientKey != "acme" {
			t.Errorf("lead %d belongs to %q", l.ID, l.ClientKey)
		}
	}
}

func TestMemStore_Stats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := lead.NewMemStore()
	seed := []*lead.Lead{
		{ClientKey: "acme", Email: "a@acme.mx", Phone: "5511112222"},
		{ClientKey: "acme", Phone: "5533334444", Status: lead.StatusCalling},
		{ClientKey: "acme", Email: "c@acme.mx", Status: lead.StatusContacted},
		{ClientKey: "other", Email: "x@other.mx"},
	}
	for _, l := range seed {
		if err := store.Create(ctx, l); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	st, err := store.Stats(ctx, "acme")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := lead.Stats{Total: 3, New: 1, WithPhone: 2, WithEmail: 2, Called: 2}
	if st != want {
		t.Errorf("Stats = %+v, want %+v", st, want)
	}
}
