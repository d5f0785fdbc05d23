// Package process launches the command under test and tears it down.
//
// Every trial owns one [Handle]. [Handle.Destroy] kills the launched process
// and everything it spawned, including children that were reparented after
// their parent exited, and returns only after all of them are gone. On Linux
// descendants are found by scanning /proc and awaited through pidfds; other
// unix systems fall back to ps(1) and polling.
package process
