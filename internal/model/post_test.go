package model

import (
	"encoding/json"
	"testing"
)

func validPostInput() PostInput {
	return PostInput{
		Title:     "Summer Outfit Pack",
		Content:   "<p>hello</p>",
		ImagesURL: []string{"https://img.example.com/a.png"},
		FileURL:   "https://files.example.com/pack.zip",
		ModType:   ModTypeOutfit,
	}
}

func TestPostInput_Validate_Valid(t *testing.T) {
	in := validPostInput()
	if err := in.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestPostInput_Validate_EmptyImagesAllowed(t *testing.T) {
	in := validPostInput()
	in.ImagesURL = nil
	if err := in.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestPostInput_Validate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *PostInput)
	}{
		{"missing title", func(in *PostInput) { in.Title = "  " }},
		{"too long title", func(in *PostInput) {
			b := make([]rune, 201)
			for i := range b {
				b[i] = 'あ'
			}
			in.Title = string(b)
		}},
		{"missing file url", func(in *PostInput) { in.FileURL = "" }},
		{"relative file url", func(in *PostInput) { in.FileURL = "/pack.zip" }},
		{"javascript file url", func(in *PostInput) { in.FileURL = "javascript:alert(1)" }},
		{"missing mod type", func(in *PostInput) { in.ModType = "" }},
		{"unknown mod type", func(in *PostInput) { in.ModType = "Weapon" }},
		{"bad image url", func(in *PostInput) { in.ImagesURL = []string{"ftp://example.com/a.png"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validPostInput()
			tt.mutate(&in)
			err := in.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if err.Code != ErrCodeValidationFailed {
				t.Errorf("Code = %q, want %q", err.Code, ErrCodeValidationFailed)
			}
			if err.Category != "validation" {
				t.Errorf("Category = %q, want %q", err.Category, "validation")
			}
		})
	}
}

func TestPost_UnmarshalJSON_ObjectID(t *testing.T) {
	raw := `{"_id":{"$oid":"65f0c0ffee"},"title":"t","images_url":["https://a/b.png"],"file_url":"https://a/f.zip","mod_type":"Preset"}`

	var p Post
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if p.Key() != "65f0c0ffee" {
		t.Errorf("Key() = %q, want %q", p.Key(), "65f0c0ffee")
	}
	if p.ModType != ModTypePreset {
		t.Errorf("ModType = %q, want %q", p.ModType, ModTypePreset)
	}
}

func TestPost_UnmarshalJSON_StringID(t *testing.T) {
	var p Post
	if err := json.Unmarshal([]byte(`{"id":"abc123","title":"t"}`), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if p.Key() != "abc123" {
		t.Errorf("Key() = %q, want %q", p.Key(), "abc123")
	}
}

func TestRoleFor(t *testing.T) {
	tests := []struct {
		email string
		admin string
		want  Role
	}{
		{"admin@example.com", "admin@example.com", RoleAdmin},
		{"Admin@Example.com ", "admin@example.com", RoleAdmin},
		{"someone@example.com", "admin@example.com", RoleUser},
		{"", "admin@example.com", RoleUser},
		{"admin@example.com", "", RoleUser},
		{"", "", RoleUser},
	}

	for _, tt := range tests {
		if got := RoleFor(tt.email, tt.admin); got != tt.want {
			t.Errorf("RoleFor(%q, %q) = %q, want %q", tt.email, tt.admin, got, tt.want)
		}
	}
}

func TestRoleFor_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		if RoleFor("admin@example.com", "admin@example.com") != RoleAdmin {
			t.Fatal("RoleFor should always return admin for the configured address")
		}
		if RoleFor("user@example.com", "admin@example.com") == RoleAdmin {
			t.Fatal("RoleFor should never return admin for other addresses")
		}
	}
}

func TestSession_IsAdmin(t *testing.T) {
	var nilSession *Session
	if nilSession.IsAdmin() {
		t.Error("nil session should not be admin")
	}
	if (&Session{Role: RoleUser}).IsAdmin() {
		t.Error("user session should not be admin")
	}
	if !(&Session{Role: RoleAdmin}).IsAdmin() {
		t.Error("admin session should be admin")
	}
}
