// Package project resolves Swift project roots and validates the paths that
// tools operate on.
//
// A project root is the nearest ancestor directory carrying a Swift project
// marker: Package.swift, an .xcodeproj or .xcworkspace bundle, or a
// .swiftlens.json config file. Every language-server session is keyed by the
// root this package resolves, so two files under the same Package.swift
// share one backend process.
//
// # Path Validation
//
// Tool inputs come from an AI agent and are treated as untrusted: paths are
// canonicalized through symlinks, checked for null bytes and length, and
// Swift files are capped at a configurable size before any file I/O happens.
//
//	resolved, err := project.ValidateSwiftFile("/path/to/App.swift", 10)
//	if err != nil {
//	    return err
//	}
//	root := project.FindRootOrParent(resolved)
//
// # Per-Project Settings
//
// Each root may carry a .swiftlens.json with per-project options (size caps,
// cross-file toggles, discovery excludes). Unknown keys in that file are
// preserved across updates so older and newer versions can share a project.
package project
