package dryrun

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestWithDryRun(t *testing.T) {
	if IsEnabled(context.Background()) {
		t.Error("IsEnabled should default to false")
	}
	if !IsEnabled(WithDryRun(context.Background(), true)) {
		t.Error("IsEnabled should be true after WithDryRun(true)")
	}
	if IsEnabled(WithDryRun(context.Background(), false)) {
		t.Error("IsEnabled should be false after WithDryRun(false)")
	}
}

func TestPreview_Write(t *testing.T) {
	p := &Preview{
		Operation: "create",
		Resource:  "plant",
		Method:    "POST",
		Path:      "/api/v3/plants",
		Details:   map[string]any{"organizationId": "org-1", "name": "North"},
		Warnings:  []string{"metadata is empty"},
	}

	var buf bytes.Buffer
	p.Write(&buf)
	want := "[DRY-RUN] Would create plant\n" +
		"  POST /api/v3/plants\n" +
		"  name: North\n" +
		"  organizationId: org-1\n" +
		"  ! metadata is empty\n" +
		"No changes made (dry-run mode)\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestPreview_WriteMinimal(t *testing.T) {
	var buf bytes.Buffer
	(&Preview{Operation: "grant", Resource: "permission"}).Write(&buf)
	if !strings.HasPrefix(buf.String(), "[DRY-RUN] Would grant permission\nNo changes made") {
		t.Errorf("got %q", buf.String())
	}
}
