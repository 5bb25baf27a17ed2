// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render holds the host-integration surface of the compositor:
// device handles received from the host application and CPU-side pixmap
// targets for readback results.
//
// The compositor never creates a window or surface of its own. A host that
// already owns a GPU device hands it over through a DeviceHandle; headless
// use lets the compositor bring up its own device and read frames back into
// a PixmapTarget.
package render
