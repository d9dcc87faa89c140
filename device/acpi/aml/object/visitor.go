package object

// Visitor is a function invoked for each namespace object that matches a
// particular type mask. The return value controls whether the children of
// this object should also be visited.
type Visitor func(depth int, obj *Object) (keepRecursing bool)

// Visit descends a scope hierarchy and invokes visitorFn for each object
// whose type matches typeMask. Pass TypeAll to inspect every object.
// Children are visited in name order.
func Visit(depth int, obj *Object, typeMask Type, visitorFn Visitor) bool {
	if obj.Type&typeMask != 0 || (typeMask == TypeAll) {
		// If the visitor returned false we should not visit the children
		if !visitorFn(depth, obj) {
			return false
		}
	}

	for _, child := range obj.Children() {
		_ = Visit(depth+1, child, typeMask, visitorFn)
	}

	return true
}
