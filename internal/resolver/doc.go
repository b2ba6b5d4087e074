/*
Package resolver walks the adjusted metadata model and computes, per package
and per requested target triple, the active feature set and the active
dependency edge set.

Resolution runs in three phases:

 1. Validation: every distinct platform predicate in the model is parsed and
    matched up front, and the normal/build dependency graph is checked for
    cycles. Either failure is fatal; a cycle or unparseable predicate cannot
    be worked around without corrupting the generated build graph.

 2. Activation: for each requested triple independently, a fixed point over
    feature activation is computed starting from the workspace roots. Feature
    activation is monotonic over a finite lattice, so repeated sweeps are
    guaranteed to terminate.

 3. Merge: per-triple answers collapse into one CrateView per package. An
    edge active under every requested triple is "always"; active under none,
    it disappears; otherwise it carries the exact triple subset for the
    conditional-expression synthesizer to encode.

Views are pure values: rerunning resolution over the same model and triple
set yields identical views, which the determinism of the whole pipeline
rests on.
*/
package resolver
