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

import (
	"fmt"
	"regexp"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Za-z_]{6}$`)

// ValidateArchiveEvent validates an ArchiveEvent according to domain rules.
//
// Validation rules:
//   - SessionID must not be empty
//   - Kind must be message or invitation
//   - Messages carry a non-nil recipient list, invitations a nil one
//   - Color, when present, is '#' followed by six word characters
//
// NOT validated:
//   - Body (empty chat lines do occur in archives)
//   - Participants (only used for filtering)
func ValidateArchiveEvent(event *ArchiveEvent) error {
	if event == nil {
		return fmt.Errorf("%w: event is nil", ErrInvalidArchiveEvent)
	}

	if event.SessionID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArchiveEvent, ErrEmptySessionID)
	}

	if err := ValidateEventKind(event.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArchiveEvent, err)
	}

	switch {
	case event.Kind == EventMessage && event.To == nil:
		return fmt.Errorf("%w: %w", ErrInvalidArchiveEvent, ErrMissingRecipients)
	case event.Kind == EventInvitation && event.To != nil:
		return fmt.Errorf("%w: %w", ErrInvalidArchiveEvent, ErrUnexpectedRecipients)
	}

	if event.Color != "" && !colorPattern.MatchString(event.Color) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidArchiveEvent, ErrInvalidColor, event.Color)
	}

	return nil
}

// ValidateEventKind validates that an EventKind has a known value.
func ValidateEventKind(kind EventKind) error {
	switch kind {
	case EventMessage, EventInvitation:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEventKind, kind)
	}
}

// ValidateTopic validates that a Topic is one of the declared topics.
func ValidateTopic(topic Topic) error {
	for _, t := range Topics {
		if t == topic {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
}

// ValidateClassifiedPicture validates a ClassifiedPicture.
func ValidateClassifiedPicture(pic *ClassifiedPicture) error {
	if pic == nil {
		return fmt.Errorf("%w: picture is nil", ErrInvalidPicture)
	}
	if pic.Path == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPicture, ErrEmptyPath)
	}
	if err := ValidateTopic(pic.Topic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPicture, err)
	}
	return nil
}
