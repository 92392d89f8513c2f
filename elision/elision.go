package elision

import (
	"reflect"

	"k8s.io/klog/v2"

	"github.com/arrayflow/arrayflow/ir"
	"github.com/arrayflow/arrayflow/pipeline"
)

// CopyElision rewrites the lowered statement tree so that pointwise
// copies never materialize: for every safe (producer, consumer) pair,
// reads of the consumer are redirected to the producer's storage at the
// same indices and the consumer's realization and producer section are
// deleted. The rewritten tree computes the same externally observable
// values with one fewer buffer per elided pair.
//
// Elision of a pair is skipped — never an error — when any consuming
// read happens under a different device context than the producer's
// write (the copy is then a real data transfer), when the consumer's
// storage is written outside its own producer section, when it is
// referenced by extern calls the pass cannot rewrite, or when the two
// realization domains differ.
func CopyElision(s ir.Stmt, g *pipeline.Graph) ir.Stmt {
	pairs := PointwiseCopies(g)
	if len(pairs) == 0 {
		return s
	}
	a := analyze(s)

	// elided maps each consumer to its producer; chains resolve below.
	elided := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		if reason := unsafeReason(pair, a); reason != "" {
			klog.V(1).Infof("elision: skipping %s <- %s: %s", pair.Consumer, pair.Producer, reason)
			continue
		}
		elided[pair.Consumer] = pair.Producer
	}
	if len(elided) == 0 {
		return s
	}

	// Pairs were discovered in realization order, but rewriting must not
	// depend on it: each consumer resolves through any elided
	// intermediates to its ultimate producer, so a chain A<-B<-C
	// collapses onto C no matter the processing order.
	targets := make(map[string]string, len(elided))
	for consumer := range elided {
		targets[consumer] = resolveProducer(consumer, elided)
	}
	for consumer, producer := range targets {
		klog.V(1).Infof("elision: redirecting reads of %s to %s", consumer, producer)
	}

	return ir.Mutate(s,
		func(e ir.Expr) ir.Expr {
			call, ok := e.(*ir.Call)
			if !ok || call.Type != ir.FuncCall {
				return e
			}
			producer, ok := targets[call.Name]
			if !ok {
				return e
			}
			// Identity-indexed copy: same indices, same component.
			return &ir.Call{Type: ir.FuncCall, Name: producer, Args: call.Args, ValueIndex: call.ValueIndex}
		},
		func(s ir.Stmt) ir.Stmt {
			switch n := s.(type) {
			case *ir.Produce:
				if _, ok := targets[n.Name]; ok {
					klog.V(2).Infof("elision: deleting producer section of %s", n.Name)
					return nil
				}
			case *ir.Realize:
				if _, ok := targets[n.Name]; ok {
					klog.V(2).Infof("elision: deleting realization of %s", n.Name)
					return n.Body
				}
			}
			return s
		})
}

// unsafeReason checks one pair against the analysis; an empty result
// means the pair is safe to elide.
func unsafeReason(pair CopyPair, a *analysis) string {
	consumer, producer := pair.Consumer, pair.Producer

	if a.updateWrites[consumer] {
		return "consumer storage is written outside its producer section"
	}
	if a.opaque[consumer] {
		return "consumer storage is referenced by an extern call"
	}

	consumerBounds, ok := a.bounds[consumer]
	if !ok {
		return "consumer has no realization in the tree"
	}
	producerBounds, ok := a.bounds[producer]
	if !ok {
		return "producer has no realization in the tree"
	}
	if !reflect.DeepEqual(consumerBounds, producerBounds) {
		return "realization domains differ"
	}

	producerWrite, ok := a.writes[producer].single()
	if !ok {
		return "producer is not written under exactly one device context"
	}
	copyWrite, ok := a.writes[consumer].single()
	if !ok {
		return "consumer is not written under exactly one device context"
	}
	if copyWrite != producerWrite {
		// The copy itself crosses device contexts: it performs a real
		// data transfer and is not eliminable.
		return "copy crosses device contexts (" + producerWrite.String() + " to " + copyWrite.String() + ")"
	}
	for api := range a.reads[consumer] {
		if api != producerWrite {
			return "consumer is read under " + api.String() + " but producer was written under " + producerWrite.String()
		}
	}
	return ""
}

// resolveProducer follows a chain of elided copies to the ultimate
// producer. Chains are acyclic by construction (each link goes backwards
// in realization order); the step guard keeps a malformed input from
// looping forever.
func resolveProducer(consumer string, elided map[string]string) string {
	producer := elided[consumer]
	for steps := 0; steps <= len(elided); steps++ {
		next, ok := elided[producer]
		if !ok {
			return producer
		}
		producer = next
	}
	klog.Fatalf("internal error: elision: cycle in copy pairs resolving %q", consumer)
	return ""
}
