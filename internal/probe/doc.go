// Package probe issues the HTTP readiness probes of a benchmark trial.
//
// A [Prober] owns one HTTP/1.1-only client and sends asynchronous GET
// requests against a fixed target. The caller joins each probe before
// sending the next:
//
//	p, err := probe.New(probe.Options{Target: "http://localhost:8080"})
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//	err = <-p.Send(ctx, func(resp probe.Response) {
//		// first 2xx reply handling
//	})
//
// Transport failures such as a refused connection are expected while the
// server starts; they are handed to [Options.OnFailure] and otherwise
// ignored. A reply outside 200-299 surfaces as a [*StatusError].
package probe
