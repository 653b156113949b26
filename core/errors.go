// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidArchiveEvent indicates an ArchiveEvent failed validation.
	ErrInvalidArchiveEvent = errors.New("invalid archive event")

	// ErrInvalidPicture indicates a ClassifiedPicture failed validation.
	ErrInvalidPicture = errors.New("invalid picture")

	// ErrEmptySessionID indicates the SessionID field is empty.
	ErrEmptySessionID = errors.New("session id cannot be empty")

	// ErrInvalidEventKind indicates an unknown EventKind value.
	ErrInvalidEventKind = errors.New("invalid event kind")

	// ErrInvalidColor indicates a color that is not of the form #RRGGBB.
	ErrInvalidColor = errors.New("invalid color")

	// ErrMissingRecipients indicates a message without a recipient list.
	ErrMissingRecipients = errors.New("message recipients cannot be nil")

	// ErrUnexpectedRecipients indicates an invitation carrying a recipient list.
	ErrUnexpectedRecipients = errors.New("invitation cannot have recipients")

	// ErrEmptyPath indicates the Path field is empty.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrUnknownTopic indicates a topic outside the declared set.
	ErrUnknownTopic = errors.New("unknown topic")
)
