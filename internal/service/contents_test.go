package service

import (
	"context"
	"testing"
)

func TestListContents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 10000)
	env.createUser(t, "other", 10000)

	docs := env.createFolder(t, "u", "Docs", nil)
	sub := env.createFolder(t, "u", "Sub", &docs.ID)
	env.createFolder(t, "u", "Empty", nil)
	env.upload(t, "u", &docs.ID, "in-docs.txt", 5)
	trashed := env.upload(t, "u", &docs.ID, "trashed.txt", 5)
	rootFile := env.upload(t, "u", nil, "root.txt", 5)
	env.upload(t, "u", &sub.ID, "deep.txt", 5)
	env.createFolder(t, "other", "Alien", nil)
	env.upload(t, "other", nil, "alien.txt", 5)

	if _, err := env.lifecycle.Trash(ctx, "u", trashed.ID); err != nil {
		t.Fatal(err)
	}

	root, err := env.contents.ListContents(ctx, "u", nil)
	if err != nil {
		t.Fatalf("ошибка листинга корня: %v", err)
	}
	if len(root.Folders) != 2 || len(root.Files) != 1 || root.Files[0].ID != rootFile.ID {
		t.Fatalf("корень: ожидалось 2 папки и 1 файл, получено %d и %d", len(root.Folders), len(root.Files))
	}
	counts := map[string]int{}
	for _, f := range root.Folders {
		if f.UserID != "u" {
			t.Errorf("в листинге чужая папка %s", f.ID)
		}
		counts[f.Name] = f.ItemCount
	}
	// Docs: Sub + in-docs.txt; файл в корзине и вложенные элементы не считаются
	if counts["Docs"] != 2 || counts["Empty"] != 0 {
		t.Errorf("неожиданные item_count: %v", counts)
	}
	if len(root.Breadcrumbs) != 1 || root.Breadcrumbs[0] != RootBreadcrumb {
		t.Errorf("для корня ожидался только синтетический корень: %+v", root.Breadcrumbs)
	}

	inSub, err := env.contents.ListContents(ctx, "u", &sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(inSub.Breadcrumbs) != 3 ||
		inSub.Breadcrumbs[0] != RootBreadcrumb ||
		inSub.Breadcrumbs[1].ID != docs.ID ||
		inSub.Breadcrumbs[2].ID != sub.ID {
		t.Errorf("неожиданные хлебные крошки: %+v", inSub.Breadcrumbs)
	}
	if len(inSub.Files) != 1 || inSub.Files[0].URL != "/api/v1/files/"+inSub.Files[0].ID+"/content" {
		t.Errorf("ожидался один файл с URL содержимого: %+v", inSub.Files)
	}
}

func TestListContents_Isolation(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "u", 1000)
	env.createUser(t, "other", 1000)
	foreign := env.createFolder(t, "other", "Secret", nil)

	_, err := env.contents.ListContents(context.Background(), "u", &foreign.ID)
	expectErr(t, err, ErrForbidden)

	_, err = env.contents.ListContents(context.Background(), "u", ptr("missing"))
	expectErr(t, err, ErrNotFound)
}

func TestListTrash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 1000)
	f := env.upload(t, "u", nil, "a.txt", 1)
	env.upload(t, "u", nil, "b.txt", 1)

	if _, err := env.lifecycle.Trash(ctx, "u", f.ID); err != nil {
		t.Fatal(err)
	}
	trash, err := env.contents.ListTrash(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(trash) != 1 || trash[0].ID != f.ID || trash[0].URL == "" {
		t.Errorf("ожидался один файл в корзине с URL: %+v", trash)
	}
}

func TestURLBuilder_Content(t *testing.T) {
	b := NewURLBuilder("https://drive.example.com/api/v1/")

	tests := []struct {
		name     string
		download bool
		token    string
		password string
		want     string
	}{
		{"inline", false, "", "", "https://drive.example.com/api/v1/files/f1/content"},
		{"download", true, "", "", "https://drive.example.com/api/v1/files/f1/content?download=true"},
		{"token", false, "tok", "", "https://drive.example.com/api/v1/files/f1/content?token=tok"},
		{"token и пароль", true, "tok", "p&w d", "https://drive.example.com/api/v1/files/f1/content?download=true&token=tok&password=p%26w+d"},
		{"пароль без токена игнорируется", false, "", "pw", "https://drive.example.com/api/v1/files/f1/content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Content("f1", tt.download, tt.token, tt.password); got != tt.want {
				t.Errorf("получено %s, ожидалось %s", got, tt.want)
			}
		})
	}
}
