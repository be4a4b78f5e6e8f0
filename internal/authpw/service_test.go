package authpw

import "testing"

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("ValidPass1")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "ValidPass1" {
		t.Fatal("hash must not equal plaintext")
	}

	if !Verify(hash, "ValidPass1") {
		t.Error("expected matching password to verify")
	}
	if Verify(hash, "WrongPass1") {
		t.Error("expected wrong password to fail")
	}
	if Verify("not-a-hash", "ValidPass1") {
		t.Error("expected garbage hash to fail")
	}
}

func TestValidateComplexity(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"too short", "short1", true},
		{"no uppercase", "alllowercase1", true},
		{"no digit", "NoDigitsHere", true},
		{"valid", "ValidPass1", false},
		{"exactly eight", "Abcdefg1", false},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateComplexity(tt.password)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateComplexity(%q) = nil, want error", tt.password)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateComplexity(%q) = %v, want nil", tt.password, err)
			}
		})
	}
}
