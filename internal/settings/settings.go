/*
Copyright 2024 Fieldsync Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package settings keeps device preferences in the local key-value store.
package settings

import (
	"context"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/fieldsync/internal/apierror"
	"github.com/fieldcrew/fieldsync/internal/kvstore"
	"github.com/fieldcrew/fieldsync/internal/observable"
)

type Language string

const (
	LanguageEnglish  Language = "en"
	LanguageJapanese Language = "ja"

	DefaultLanguage = LanguageEnglish

	languageKey = "preferred_language"
)

func (l Language) Validate() error {
	return validation.Validate(string(l), validation.Required, validation.In(string(LanguageEnglish), string(LanguageJapanese)))
}

// Store holds the preferred language. Reads are served from memory after Load.
type Store struct {
	kv       kvstore.Store
	mu       sync.Mutex
	language *observable.Observable[Language]
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv, language: observable.New(DefaultLanguage)}
}

// Load reads the persisted language. Unknown or missing values fall back to the default.
func (s *Store) Load(ctx context.Context) (Language, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(ctx, languageKey)
	if err != nil {
		return s.language.Get(), apierror.NewAPIError(apierror.ErrInternalServer, "failed to read language setting", err)
	}

	lang := DefaultLanguage
	if ok {
		candidate := Language(strings.ToLower(strings.TrimSpace(raw)))
		if candidate.Validate() == nil {
			lang = candidate
		} else {
			logrus.Warnf("ignoring stored language %q", raw)
		}
	}

	if lang != s.language.Get() {
		s.language.Set(lang)
	}
	return lang, nil
}

func (s *Store) Language() Language {
	return s.language.Get()
}

// SetLanguage persists lang and notifies subscribers when it changed.
func (s *Store) SetLanguage(ctx context.Context, lang Language) error {
	if err := lang.Validate(); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "language must be one of en, ja", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(ctx, languageKey, string(lang)); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to save language setting", err)
	}
	if lang != s.language.Get() {
		s.language.Set(lang)
	}
	return nil
}

// Subscribe calls fn with every language change until the returned func is called.
func (s *Store) Subscribe(fn func(Language)) func() {
	return s.language.Subscribe(fn)
}
