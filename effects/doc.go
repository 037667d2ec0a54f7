// Package effects describes side-effecting computations as values.
//
// An Effect[R, A] is a description: building or composing one performs
// nothing. Run executes it against a runtime R, which supplies the
// capabilities the description needs. Capabilities are declared as small
// fragment interfaces (clock.Has, log.Has, ...) and use-cases constrain R by
// the fragments they use, so a runtime missing one is rejected at compile time.
//
// Failures travel on the error channel of the Result returned by Run and
// always belong to the taxonomy of package fault.
//
//	func Greet[R interface{ clock.Has; log.Has }](name string) effects.Effect[R, effects.Unit] {
//	    return effects.Bind(clock.Now[R](), func(now time.Time) effects.Effect[R, effects.Unit] {
//	        return log.Info[R]("hello", map[string]any{"name": name, "at": now})
//	    })
//	}
//
//	res := effects.Run(ctx, Greet[*app.Runtime]("ada"), rt)
package effects
