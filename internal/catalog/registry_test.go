package catalog

import "testing"

func TestPathForKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"name.female", "name/female"},
		{"address.ca.sf.zip", "address/ca/sf/zip"},
		{"job", "job"},
		{".name.male", "name/male"},
	}

	for _, tt := range tests {
		if got := PathForKey(tt.key); got != tt.want {
			t.Errorf("PathForKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestRegister_Defaults(t *testing.T) {
	Clear()
	defer Clear()

	Register(Definition{Key: "name.female", Label: "Female first names"})
	Register(Definition{Key: "job.title", Group: "work", Path: "jobs/titles"})

	def, ok := Get("name.female")
	if !ok {
		t.Fatal("Get(name.female) not found")
	}
	if def.Group != "name" || def.Path != "name/female" || def.Label != "Female first names" {
		t.Errorf("Get(name.female) = %+v", def)
	}

	def, _ = Get("job.title")
	if def.Group != "work" || def.Path != "jobs/titles" || def.Label != "job.title" {
		t.Errorf("Get(job.title) = %+v", def)
	}

	if Count() != 2 {
		t.Errorf("Count() = %d, want 2", Count())
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	Clear()
	defer Clear()

	Register(Definition{Key: "name.male"})

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register should panic")
		}
	}()
	Register(Definition{Key: "name.male"})
}

func TestAllByGroupAndGroups(t *testing.T) {
	Clear()
	defer Clear()

	Register(Definition{Key: "name.surname"})
	Register(Definition{Key: "address.ca.sf.zip"})
	Register(Definition{Key: "name.female"})
	Register(Definition{Key: "address.ca.sf.street"})

	all := All()
	want := []string{"address.ca.sf.street", "address.ca.sf.zip", "name.female", "name.surname"}
	if len(all) != len(want) {
		t.Fatalf("All() returned %d definitions, want %d", len(all), len(want))
	}
	for i, key := range want {
		if all[i].Key != key {
			t.Errorf("All()[%d].Key = %q, want %q", i, all[i].Key, key)
		}
	}

	names := ByGroup("name")
	if len(names) != 2 || names[0].Key != "name.female" || names[1].Key != "name.surname" {
		t.Errorf("ByGroup(name) = %+v", names)
	}

	groups := Groups()
	if len(groups) != 2 || groups[0] != "address" || groups[1] != "name" {
		t.Errorf("Groups() = %v, want [address name]", groups)
	}
}
