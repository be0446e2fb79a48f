package wire

import (
	"encoding/json"
	"testing"
)

func TestValueEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"scalars equal", NewScalar(1.5), NewScalar(1.5), true},
		{"scalars differ", NewScalar(1.5), NewScalar(2.5), false},
		{"kinds differ", NewScalar(1), NewInteger(1), false},
		{"vectors equal", NewVector3(Vector3{1, 2, 3}), NewVector3(Vector3{1, 2, 3}), true},
		{"arrays equal", NewArray([]Value{NewScalar(1), NewText("a")}), NewArray([]Value{NewScalar(1), NewText("a")}), true},
		{"arrays differ length", NewArray([]Value{NewScalar(1)}), NewArray([]Value{NewScalar(1), NewScalar(2)}), false},
		{"null equal", Null(), Null(), true},
	}
	for _, c := range cases {
		if got := c.a.Equal(c.b); got != c.want {
			t.Errorf("%s: Equal = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	values := []Value{
		Null(),
		NewScalar(3.25),
		NewInteger(-7),
		NewText("hull breach"),
		NewObjectID(42),
		NewVector3(Vector3{X: 1, Y: 2, Z: 3}),
		NewArray([]Value{NewScalar(1), NewText("x")}),
	}
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", v, err)
		}
		var got Value
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if !got.Equal(v) {
			t.Errorf("round trip %v -> %s -> %v, not equal", v, data, got)
		}
	}
}

func TestDecodeRequestUnknownVerb(t *testing.T) {
	c := NewJSONCodec()
	_, err := c.DecodeRequest([]byte(`{"type":"teleport","nonce":"1"}`))
	if err == nil {
		t.Fatal("DecodeRequest with an unknown verb should fail")
	}
}

func TestDecodeRequestMalformed(t *testing.T) {
	c := NewJSONCodec()
	if _, err := c.DecodeRequest([]byte(`not json`)); err == nil {
		t.Fatal("DecodeRequest with malformed JSON should fail")
	}
}

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	c := NewJSONCodec()
	data, err := json.Marshal(requestEnvelope{
		Type: "set", Nonce: "abc", Object: 7, Member: "throttle",
		Args: []Value{NewScalar(0.75)},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	req, err := c.DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req.Verb != VerbSet || req.Object != 7 || req.Member != "throttle" {
		t.Fatalf("req = %+v, want verb=set object=7 member=throttle", req)
	}
	if len(req.Args) != 1 {
		t.Fatalf("req.Args = %v, want one arg", req.Args)
	}
}

func TestEncodeResponseCarriesErrorKind(t *testing.T) {
	c := NewJSONCodec()
	data, err := c.EncodeResponse(Response{
		Nonce: "n1",
		Err:   NewRequestError(ErrBadName, "no such member %q", "throttle"),
	})
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.Error == nil || env.Error.Kind != "BadName" {
		t.Fatalf("env.Error = %+v, want Kind BadName", env.Error)
	}
}

func TestEncodeEventOmitsValueOnDestroyed(t *testing.T) {
	c := NewJSONCodec()
	data, err := c.EncodeEvent(NewDestroyedEvent(9))
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.Value != nil {
		t.Fatalf("env.Value = %v, want nil for an object_destroyed event", env.Value)
	}
	if env.Type != "object_destroyed" {
		t.Fatalf("env.Type = %q, want object_destroyed", env.Type)
	}
}

func TestMapObjectsRewritesLeavesAndArrays(t *testing.T) {
	v := NewArray([]Value{
		NewObjectID(3),
		NewScalar(1.5),
		NewArray([]Value{NewObjectID(4)}),
	})

	mapped, ok := v.MapObjects(func(o ObjectID) (ObjectID, bool) { return o + 100, true })
	if !ok {
		t.Fatal("MapObjects over resolvable ids should succeed")
	}
	arr, _ := mapped.AsArray()
	if o, _ := arr[0].AsObjectID(); o != 103 {
		t.Fatalf("arr[0] = %v, want object 103", arr[0])
	}
	if f, _ := arr[1].AsScalar(); f != 1.5 {
		t.Fatalf("arr[1] = %v, want untouched scalar 1.5", arr[1])
	}
	inner, _ := arr[2].AsArray()
	if o, _ := inner[0].AsObjectID(); o != 104 {
		t.Fatalf("nested id = %v, want object 104", inner[0])
	}
}

func TestMapObjectsFailsOnUnresolvableID(t *testing.T) {
	v := NewArray([]Value{NewObjectID(3)})
	if _, ok := v.MapObjects(func(ObjectID) (ObjectID, bool) { return 0, false }); ok {
		t.Fatal("MapObjects should fail when the translation does")
	}
}
