/*
Package storygen turns model calls into story proposals and scene images.

It owns the prompts, the tolerant parsing of model output into scenes, and Local, a
ports.StoryService that drives a ports.Generator in-process. The HTTP backend and the
terminal wizard both go through Local.
*/
package storygen
