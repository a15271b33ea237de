package service

import (
	"testing"
	"time"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
)

func TestShareCache(t *testing.T) {
	c := NewShareCache(2, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatal("пустой кэш не должен возвращать значения")
	}

	c.Set(&model.Share{ID: "1", Token: "a"})
	c.Set(&model.Share{ID: "2", Token: "b"})
	got, ok := c.Get("a")
	if !ok || got.ID != "1" {
		t.Fatalf("ожидалось попадание для a: %v, %v", got, ok)
	}

	// Возвращается копия
	got.ID = "changed"
	if again, _ := c.Get("a"); again.ID != "1" {
		t.Error("изменение результата не должно влиять на кэш")
	}

	// Вытеснение: b — наименее недавно использованный
	c.Set(&model.Share{ID: "3", Token: "c"})
	if _, ok := c.Get("b"); ok {
		t.Error("b должен быть вытеснен")
	}

	c.Invalidate("a", "unknown")
	if _, ok := c.Get("a"); ok {
		t.Error("a должен быть удалён")
	}
	if c.Len() != 1 {
		t.Errorf("ожидалась 1 запись, получено %d", c.Len())
	}
}

func TestShareCache_TTL(t *testing.T) {
	c := NewShareCache(10, 20*time.Millisecond)
	c.Set(&model.Share{ID: "1", Token: "a"})

	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("запись должна истечь по TTL")
	}
}

func TestShareCache_Disabled(t *testing.T) {
	c := NewShareCache(0, time.Minute)
	if c != nil {
		t.Fatal("при нулевом размере кэш должен быть nil")
	}
	// Методы безопасны для nil
	c.Set(&model.Share{Token: "a"})
	c.Invalidate("a")
	if _, ok := c.Get("a"); ok || c.Len() != 0 {
		t.Error("выключенный кэш не должен хранить значения")
	}
}
