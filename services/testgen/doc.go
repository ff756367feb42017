// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package testgen drives a conversational model to write Playwright end-to-end
tests for a web page, one UI component at a time.

# Flow

	Loop.Run
	  └─ Session.Send(prompt)        model writes a test
	       └─ ParseArtifact(text)    code block + component name
	            └─ ArtifactStore.Write
	                 └─ Executor.Run exit code decides pass/fail
	                      └─ Repairer.Repair (on failure, bounded)

Components are processed strictly one after another. The conversation has
ordered context and the tests directory is shared by name, so nothing here
runs concurrently.

# Failure Model

  - Parse problems never fail: the artifact falls back to no code and the
    name "unknown", and the component is then recorded as failing.
  - A failing test triggers at most one Repair call, which itself makes at
    most MaxAttempts fix requests.
  - Persistence failures are logged and the run continues.
  - Backend failures (network, auth) wrap ErrBackend and abort the run. The
    state accumulated so far is still returned.

# Component Discovery

The model decides what the components are. This package never inspects the
page markup; it only forwards it.
*/
package testgen
