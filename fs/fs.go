// Package appfs embeds the files the binaries ship with.
package appfs

import "embed"

//go:embed assets migrations/*.sql templates/email/*
var FS embed.FS
