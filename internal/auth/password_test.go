package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		attempt  string
		wantErr  bool
	}{
		{"matching credentials", "s3cret-Admin!", "s3cret-Admin!", false},
		{"wrong password", "s3cret-Admin!", "guess", true},
		{"case sensitive", "Password1", "password1", true},
		{"empty attempt against a real hash", "Password1", "", true},
		{"whitespace is significant", "hunter2", "hunter2 ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			if err != nil {
				t.Fatalf("HashPassword: %v", err)
			}
			if hash == tt.password {
				t.Fatal("hash must not equal the plain password")
			}
			if err := CheckPassword(hash, tt.attempt); (err != nil) != tt.wantErr {
				t.Errorf("CheckPassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHashPassword_SaltsAreRandom(t *testing.T) {
	first, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	second, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if first == second {
		t.Error("two hashes of the same password should differ")
	}
	if err := CheckPassword(first, "same-input"); err != nil {
		t.Errorf("first hash does not verify: %v", err)
	}
	if err := CheckPassword(second, "same-input"); err != nil {
		t.Errorf("second hash does not verify: %v", err)
	}
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	if err := CheckPassword("not-a-bcrypt-hash", "anything"); err == nil {
		t.Error("expected an error for a malformed hash")
	}
}
