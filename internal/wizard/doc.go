// Package wizard implements the story wizard as a pure transition function.
//
// Transition never performs I/O. Remote work is requested through domain.Command values
// in the Result; the host executes them and feeds the outcome back as
// domain.ProposalReceived or domain.ImagesSettled events.
package wizard
