package auth

import (
	"errors"
	"strings"
	"testing"
)

// fastParams — облегчённые параметры, чтобы тесты не тратили 64 MiB на хэш.
var fastParams = Params{Memory: 1024, Iterations: 1, Parallelism: 1}

func TestHashVerify(t *testing.T) {
	h := NewHasher(fastParams)

	encoded, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("ошибка хэширования: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Errorf("неожиданный формат хэша: %s", encoded)
	}
	if strings.Contains(encoded, "s3cret") {
		t.Error("хэш не должен содержать пароль в открытом виде")
	}

	ok, err := h.Verify("s3cret", encoded)
	if err != nil || !ok {
		t.Errorf("верный пароль не принят: ok=%v, err=%v", ok, err)
	}

	ok, err = h.Verify("wrong", encoded)
	if err != nil || ok {
		t.Errorf("неверный пароль принят: ok=%v, err=%v", ok, err)
	}
}

func TestHash_UniqueSalt(t *testing.T) {
	h := NewHasher(fastParams)

	a, err := h.Hash("same")
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Hash("same")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("два хэша одного пароля совпали — соль не случайна")
	}
}

func TestHash_EmptyPassword(t *testing.T) {
	if _, err := NewHasher(fastParams).Hash(""); err == nil {
		t.Error("ожидалась ошибка для пустого пароля")
	}
}

// TestVerify_ParamsFromHash проверяет, что параметры берутся из строки хэша.
func TestVerify_ParamsFromHash(t *testing.T) {
	encoded, err := NewHasher(fastParams).Hash("pw")
	if err != nil {
		t.Fatal(err)
	}

	other := NewHasher(Params{Memory: 2048, Iterations: 2, Parallelism: 1})
	ok, err := other.Verify("pw", encoded)
	if err != nil || !ok {
		t.Errorf("пароль должен проверяться с параметрами из хэша: ok=%v, err=%v", ok, err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	h := NewHasher(fastParams)

	tests := []struct {
		name    string
		encoded string
	}{
		{"пустая строка", ""},
		{"открытый текст", "plaintext"},
		{"другой алгоритм", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5"},
		{"неверная версия", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$a2V5"},
		{"битые параметры", "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5"},
		{"нулевые параметры", "$argon2id$v=19$m=0,t=1,p=1$c2FsdA$a2V5"},
		{"битая соль", "$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Verify("pw", tt.encoded)
			if !errors.Is(err, ErrInvalidHash) {
				t.Errorf("ожидалась ErrInvalidHash, получено %v", err)
			}
		})
	}
}
