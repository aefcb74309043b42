// Package appfs embeds the application's static assets: SQL migrations, email templates and the common passwords list.
package appfs

import "embed"

//go:embed assets/* migrations/*.sql templates/email/*
var FS embed.FS
