package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
)

func TestShareIssue_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 1000)
	env.createUser(t, "other", 1000)
	f := env.upload(t, "u", nil, "a.txt", 1)
	trashed := env.upload(t, "u", nil, "t.txt", 1)
	if _, err := env.lifecycle.Trash(ctx, "u", trashed.ID); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)

	_, err := env.shares.Issue(ctx, "u", Target{Kind: TargetFile, ID: f.ID}, "admin", nil, nil)
	expectErr(t, err, ErrValidation)
	_, err = env.shares.Issue(ctx, "u", Target{Kind: TargetFile, ID: f.ID}, model.PermissionView, nil, &past)
	expectErr(t, err, ErrValidation)
	_, err = env.shares.Issue(ctx, "u", Target{Kind: "album", ID: f.ID}, model.PermissionView, nil, nil)
	expectErr(t, err, ErrValidation)
	_, err = env.shares.Issue(ctx, "u", Target{Kind: TargetFile, ID: trashed.ID}, model.PermissionView, nil, nil)
	expectErr(t, err, ErrValidation)
	_, err = env.shares.Issue(ctx, "u", Target{Kind: TargetFile, ID: "missing"}, model.PermissionView, nil, nil)
	expectErr(t, err, ErrNotFound)
	_, err = env.shares.Issue(ctx, "other", Target{Kind: TargetFile, ID: f.ID}, model.PermissionView, nil, nil)
	expectErr(t, err, ErrForbidden)
}

func TestShareIssue_TokenAndPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 1000)
	f := env.upload(t, "u", nil, "a.txt", 1)

	s1, err := env.shares.Issue(ctx, "u", Target{Kind: TargetFile, ID: f.ID}, "", ptr("secret"), nil)
	if err != nil {
		t.Fatalf("ошибка создания ссылки: %v", err)
	}
	s2, err := env.shares.Issue(ctx, "u", Target{Kind: TargetFile, ID: f.ID}, model.PermissionEdit, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(s1.Token) != 64 || s1.Token == s2.Token {
		t.Errorf("ожидались разные токены по 64 символа: %q, %q", s1.Token, s2.Token)
	}
	if s1.Permission != model.PermissionView {
		t.Errorf("уровень доступа по умолчанию — view, получено %s", s1.Permission)
	}
	if s1.PasswordHash == nil || *s1.PasswordHash == "secret" || !strings.HasPrefix(*s1.PasswordHash, "$argon2id$") {
		t.Errorf("пароль должен храниться как argon2id хэш: %v", s1.PasswordHash)
	}
	if s2.PasswordHash != nil {
		t.Error("ссылка без пароля не должна иметь хэш")
	}

	list, err := env.shares.ListByUser(ctx, "u")
	if err != nil || len(list) != 2 {
		t.Errorf("ожидалось 2 ссылки: %d, %v", len(list), err)
	}
}

// TestShareResolve_Order — NotFound → Gone → PasswordRequired → Unauthorized.
func TestShareResolve_Order(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 1000)
	f := env.upload(t, "u", nil, "a.txt", 1)
	expires := time.Now().Add(time.Hour)

	share, err := env.shares.Issue(ctx, "u", Target{Kind: TargetFile, ID: f.ID}, model.PermissionView, ptr("pw"), &expires)
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.shares.Resolve(ctx, "unknown-token", nil)
	expectErr(t, err, ErrNotFound)

	_, err = env.shares.Resolve(ctx, share.Token, nil)
	expectErr(t, err, ErrPasswordRequired)
	_, err = env.shares.Resolve(ctx, share.Token, ptr(""))
	expectErr(t, err, ErrPasswordRequired)
	_, err = env.shares.Resolve(ctx, share.Token, ptr("wrong"))
	expectErr(t, err, ErrUnauthorized)

	res, err := env.shares.Resolve(ctx, share.Token, ptr("pw"))
	if err != nil {
		t.Fatalf("ошибка resolve: %v", err)
	}
	if res.File == nil || res.File.ID != f.ID || res.Folder != nil {
		t.Fatalf("ожидался файл ссылки: %+v", res)
	}
	wantURL := "/api/v1/files/" + f.ID + "/content?token=" + share.Token + "&password=pw"
	if res.File.URL != wantURL {
		t.Errorf("URL содержимого: %s, ожидался %s", res.File.URL, wantURL)
	}

	// Истёкшая ссылка — Gone даже без пароля
	env.shares.now = func() time.Time { return expires.Add(time.Second) }
	_, err = env.shares.Resolve(ctx, share.Token, nil)
	expectErr(t, err, ErrGone)
}

// TestShareScoping — ссылка на папку даёт доступ к её файлам,
// ссылка на файл — только к нему самому.
func TestShareScoping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 1000)

	folder := env.createFolder(t, "u", "F", nil)
	sub := env.createFolder(t, "u", "Sub", &folder.ID)
	f1 := env.upload(t, "u", &folder.ID, "f1.txt", 3)
	f2 := env.upload(t, "u", &folder.ID, "f2.txt", 3)
	deep := env.upload(t, "u", &sub.ID, "deep.txt", 3)
	outside := env.upload(t, "u", nil, "outside.txt", 3)

	folderShare, err := env.shares.Issue(ctx, "u", Target{Kind: TargetFolder, ID: folder.ID}, model.PermissionView, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	fileShare, err := env.shares.Issue(ctx, "u", Target{Kind: TargetFile, ID: f1.ID}, model.PermissionView, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !AuthorizeFileWithinShare(folderShare, f2.File) {
		t.Error("ссылка на папку должна давать доступ к файлу в ней")
	}
	if AuthorizeFileWithinShare(fileShare, f2.File) {
		t.Error("ссылка на f1 не должна давать доступ к f2 из той же папки")
	}
	if !AuthorizeFileWithinShare(fileShare, f1.File) {
		t.Error("ссылка на файл должна давать доступ к нему")
	}
	if AuthorizeFileWithinShare(folderShare, outside.File) {
		t.Error("файл вне папки не должен быть доступен")
	}

	open := func(token, fileID string) error {
		_, rc, err := env.shares.OpenSharedFile(ctx, token, nil, fileID)
		if rc != nil {
			rc.Close()
		}
		return err
	}

	if err := open(folderShare.Token, f2.ID); err != nil {
		t.Errorf("файл в расшаренной папке должен открываться: %v", err)
	}
	expectErr(t, open(fileShare.Token, f2.ID), ErrForbidden)
	expectErr(t, open(folderShare.Token, deep.ID), ErrForbidden)
	expectErr(t, open(folderShare.Token, outside.ID), ErrForbidden)
	expectErr(t, open(folderShare.Token, "missing"), ErrNotFound)

	_, rc, err := env.shares.OpenSharedFile(ctx, fileShare.Token, nil, f1.ID)
	if err != nil {
		t.Fatalf("ошибка открытия файла по ссылке: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "xxx" {
		t.Errorf("неожиданное содержимое: %q", data)
	}

	// Файл в корзине по ссылке недоступен
	if _, err := env.lifecycle.Trash(ctx, "u", f2.ID); err != nil {
		t.Fatal(err)
	}
	expectErr(t, open(folderShare.Token, f2.ID), ErrNotFound)
}

func TestShareResolve_Folder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 1000)

	parent := env.createFolder(t, "u", "Parent", nil)
	folder := env.createFolder(t, "u", "Album", &parent.ID)
	env.createFolder(t, "u", "Nested", &folder.ID)
	f := env.upload(t, "u", &folder.ID, "pic.txt", 2)

	share, err := env.shares.Issue(ctx, "u", Target{Kind: TargetFolder, ID: folder.ID}, model.PermissionView, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := env.shares.Resolve(ctx, share.Token, nil)
	if err != nil {
		t.Fatalf("ошибка resolve: %v", err)
	}
	if res.Folder == nil || res.Folder.ID != folder.ID || res.File != nil {
		t.Fatalf("ожидалась папка ссылки: %+v", res)
	}
	if len(res.Contents.Folders) != 1 || len(res.Contents.Files) != 1 {
		t.Fatalf("ожидались 1 папка и 1 файл, получено %d и %d", len(res.Contents.Folders), len(res.Contents.Files))
	}
	if res.Contents.Files[0].URL != "/api/v1/files/"+f.ID+"/content?token="+share.Token {
		t.Errorf("URL файла должен содержать токен: %s", res.Contents.Files[0].URL)
	}
	// Предки расшаренной папки не раскрываются
	if len(res.Contents.Breadcrumbs) != 1 || res.Contents.Breadcrumbs[0].ID != folder.ID {
		t.Errorf("неожиданные хлебные крошки: %+v", res.Contents.Breadcrumbs)
	}
}

func TestShareDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 1000)
	env.createUser(t, "other", 1000)
	f := env.upload(t, "u", nil, "a.txt", 1)

	share, err := env.shares.Issue(ctx, "u", Target{Kind: TargetFile, ID: f.ID}, model.PermissionView, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.shares.Resolve(ctx, share.Token, nil); err != nil {
		t.Fatal(err)
	}
	if env.cache.Len() != 1 {
		t.Fatalf("ссылка должна попасть в кэш, в кэше %d", env.cache.Len())
	}

	expectErr(t, env.shares.Delete(ctx, "other", share.ID), ErrForbidden)
	if err := env.shares.Delete(ctx, "u", share.ID); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	expectErr(t, env.shares.Delete(ctx, "u", share.ID), ErrNotFound)

	_, err = env.shares.Resolve(ctx, share.Token, nil)
	expectErr(t, err, ErrNotFound)
}

func TestShareReaper_RunOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u", 1000)
	f := env.upload(t, "u", nil, "a.txt", 1)

	soon := time.Now().Add(time.Minute)
	expiring, err := env.shares.Issue(ctx, "u", Target{Kind: TargetFile, ID: f.ID}, model.PermissionView, nil, &soon)
	if err != nil {
		t.Fatal(err)
	}
	permanent, err := env.shares.Issue(ctx, "u", Target{Kind: TargetFile, ID: f.ID}, model.PermissionView, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.shares.Resolve(ctx, expiring.Token, nil); err != nil {
		t.Fatal(err)
	}

	env.shares.now = func() time.Time { return soon.Add(time.Second) }
	reaper := NewShareReaper(env.shares, time.Hour, testLogger())

	deleted, err := reaper.RunOnce(ctx)
	if err != nil || deleted != 1 {
		t.Fatalf("ожидалась 1 удалённая ссылка: %d, %v", deleted, err)
	}

	_, err = env.shares.Resolve(ctx, expiring.Token, nil)
	expectErr(t, err, ErrNotFound)
	if _, err := env.shares.Resolve(ctx, permanent.Token, nil); err != nil {
		t.Errorf("бессрочная ссылка должна остаться: %v", err)
	}
}

func TestShareReaper_StartStop(t *testing.T) {
	env := newTestEnv(t)

	disabled := NewShareReaper(env.shares, 0, testLogger())
	disabled.Start(context.Background())
	disabled.Stop()

	reaper := NewShareReaper(env.shares, 10*time.Millisecond, testLogger())
	reaper.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	reaper.Stop()
}
