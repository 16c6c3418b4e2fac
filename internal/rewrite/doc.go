// Package rewrite moves workspace dependencies onto pnpm catalogs.
//
// A rewrite is computed first with [Rewriter.Plan], which reads every
// package.json and never writes. [Rewriter.Apply] then snapshots exactly the
// files the plan changes through the backup engine and only afterwards
// writes them, so every applied rewrite can be undone. Files keep their key
// order and are written with two-space indentation and a trailing newline.
package rewrite
