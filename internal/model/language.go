// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// LanguageSeed describes a language created by bootstrap.
type LanguageSeed struct {
	Code       string
	Name       string
	NativeName string
}

// CommonLanguages provides names for languages the bootstrap may seed.
var CommonLanguages = []LanguageSeed{
	{"ko", "Korean", "한국어"},
	{"en", "English", "English"},
	{"ja", "Japanese", "日本語"},
	{"zh", "Chinese", "中文"},
	{"de", "German", "Deutsch"},
	{"fr", "French", "Français"},
	{"es", "Spanish", "Español"},
	{"ru", "Russian", "Русский"},
	{"vi", "Vietnamese", "Tiếng Việt"},
	{"th", "Thai", "ไทย"},
	{"id", "Indonesian", "Bahasa Indonesia"},
	{"ar", "Arabic", "العربية"},
}

// LookupLanguageSeed returns the seed for a code, falling back to the code itself as name.
func LookupLanguageSeed(code string) LanguageSeed {
	for _, l := range CommonLanguages {
		if l.Code == code {
			return l
		}
	}
	return LanguageSeed{Code: code, Name: code, NativeName: code}
}
