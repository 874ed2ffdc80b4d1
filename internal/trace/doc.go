// Package trace records what the lowering pipeline is doing.
//
// Spans are opened per module by the driver, per source file and per
// declaration by the lowering context, and once for finalize:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	sp := trace.Begin(trace.FromContext(ctx), trace.ScopeModule, "lower:"+name, 0)
//	defer sp.End("")
//
// Tracers: Nop (disabled), StreamTracer (text or NDJSON to a writer),
// RingTracer (last N events kept for crash dumps) and MultiTracer.
// A Heartbeat emits periodic events so a hung lowering is visible in the
// stream.
//
// Levels gate scopes: phase shows driver and pass events, detail adds
// modules and files, debug adds individual declarations.
package trace
