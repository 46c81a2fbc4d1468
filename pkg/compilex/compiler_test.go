package compilex

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func mustCompile(t *testing.T, c *Compiler, template string, attrs map[string]any) string {
	t.Helper()
	out, err := c.Compile(template, attrs)
	if err != nil {
		t.Fatalf("Compile(%q): %v", template, err)
	}
	return out
}

func TestCompilePassThrough(t *testing.T) {
	templates := []string{
		"{% directive %} expresion {% enddirective %}",
		"{% directive %} expresion",
		"{% d %}x{% endd %}",
		"{% d %}x",
		"{% endif %}",
		"plain text with % and } and {",
		"{% if a %}never closed",
	}

	c := New()
	for _, tmpl := range templates {
		if got := mustCompile(t, c, tmpl, map[string]any{"a": true}); got != tmpl {
			t.Errorf("\nGot %q\nExp %q", got, tmpl)
		}
	}
}

func TestCompileUnknownDirective(t *testing.T) {
	templates := []string{
		"{% foo x %}{% endfoo %}",
		"{% directive statement %} expresion {% enddirective %}",
		"{% directive statement %}{% enddirective %}",
	}

	for _, tmpl := range templates {
		_, err := New().Compile(tmpl, nil)
		if !errors.Is(err, ErrDirectiveNotFound) {
			t.Errorf("Compile(%q) error = %v, want ErrDirectiveNotFound", tmpl, err)
		}
	}
}

func TestExtendReceivesStatementAndBody(t *testing.T) {
	c := New().
		Extend("MyDirective", func(statement, body string, attrs map[string]any) (string, error) {
			return statement, nil
		}).
		Extend("body", func(statement, body string, attrs map[string]any) (string, error) {
			return body, nil
		}).
		Extend("name", func(statement, body string, attrs map[string]any) (string, error) {
			return "name", nil
		})

	cases := []struct {
		template string
		want     string
	}{
		{"{% MyDirective MyStatement %}{% endMyDirective %}", "MyStatement"},
		{"{% body MyStatement %}12345{% endbody %}", "12345"},
		{"{% name MyStatement %}{% endname %}", "name"},
	}

	for _, tc := range cases {
		if got := mustCompile(t, c, tc.template, nil); got != tc.want {
			t.Errorf("\nGot %q\nExp %q", got, tc.want)
		}
	}
}

func TestExtendOutputIsRecompiled(t *testing.T) {
	c := New().Extend("wrap", func(statement, body string, attrs map[string]any) (string, error) {
		return "{% if " + statement + " %}{{ name }}!{% endif %}", nil
	})

	got := mustCompile(t, c, "{% wrap show %}ignored{% endwrap %}", map[string]any{"show": true, "name": "ada"})
	if got != "ada!" {
		t.Fatalf("\nGot %q\nExp %q", got, "ada!")
	}
}

func TestExtendReceivesRawBody(t *testing.T) {
	var seen string
	c := New().Extend("raw", func(statement, body string, attrs map[string]any) (string, error) {
		seen = body
		return "", nil
	})

	got := mustCompile(t, c, "<{% raw x %}{% if a %}{{ b }}{% endif %}{% endraw %}>", map[string]any{"a": true})
	if got != "<>" {
		t.Fatalf("\nGot %q\nExp %q", got, "<>")
	}
	if want := "{% if a %}{{ b }}{% endif %}"; seen != want {
		t.Fatalf("handler body\nGot %q\nExp %q", seen, want)
	}
}

func TestExtendHandlerError(t *testing.T) {
	boom := errors.New("boom")
	c := New().Extend("fail", func(statement, body string, attrs map[string]any) (string, error) {
		return "", boom
	})

	_, err := c.Compile("a{% fail x %}{% endfail %}b", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}

func TestBuiltinsShadowRegisteredDirectives(t *testing.T) {
	c := New().Extend("if", func(statement, body string, attrs map[string]any) (string, error) {
		return "registered", nil
	})

	got := mustCompile(t, c, "{% if a == a %}Y{% endif %}", map[string]any{"a": true})
	if got != "Y" {
		t.Fatalf("\nGot %q\nExp %q", got, "Y")
	}
}

func TestBuiltinCapitalizedName(t *testing.T) {
	got := mustCompile(t, New(), "{% If a %}Y{% endIf %}", map[string]any{"a": true})
	if got != "Y" {
		t.Fatalf("\nGot %q\nExp %q", got, "Y")
	}

	if _, err := New().Compile("{% IF a %}Y{% endIF %}", map[string]any{"a": true}); !errors.Is(err, ErrDirectiveNotFound) {
		t.Fatalf("error = %v, want ErrDirectiveNotFound", err)
	}
}

func TestDirectives(t *testing.T) {
	h := func(statement, body string, attrs map[string]any) (string, error) { return "", nil }
	c := New(WithDirective("alpha", h)).Extend("zeta", h).Extend("if", h)

	want := []string{"alpha", "each", "if", "unless", "zeta"}
	if got := c.Directives(); !reflect.DeepEqual(got, want) {
		t.Fatalf("\nGot %v\nExp %v", got, want)
	}
}

func TestEchoDefaults(t *testing.T) {
	cases := []struct {
		template string
		attrs    map[string]any
		want     string
	}{
		{"{{ key }}", map[string]any{"key": "value"}, "value"},
		{"{{ key or 'value' }}", nil, "value"},
		{`{{ key or "value" }}`, nil, "value"},
		{"{{ key or default }}", map[string]any{"default": "value"}, "value"},
		{"{{ key or default or 'value' }}", nil, "value"},
		{"{{ key or default or 'value' }}", map[string]any{"key": "", "default": false}, "value"},
		{"{{ key }}", nil, ""},
		{"{{ 'literal' }}", nil, "literal"},
		{"{{ count }}", map[string]any{"count": 0}, "0"},
		{"{{ user.name }}", map[string]any{"user": map[string]any{"name": "ada"}}, "ada"},
		{"[{{a}}|{{ b }}]", map[string]any{"a": 1, "b": 2.5}, "[1|2.5]"},
		{"{{ key or  default }}", map[string]any{"default": "value"}, "value"},
		{"{{ key\tor\tdefault }}", map[string]any{"default": "value"}, "value"},
		{"{{ 'value' or key }}", map[string]any{"key": "other"}, "value"},
		{"{{ '' or key }}", map[string]any{"key": "other"}, "other"},
		{"{{ key or 'a or b' or other }}", nil, "a or b"},
		{`{{ key or "" or 'value' }}`, nil, "value"},
		{"{{ }}", nil, ""},
	}

	c := New()
	for _, tc := range cases {
		if got := mustCompile(t, c, tc.template, tc.attrs); got != tc.want {
			t.Errorf("%s\nGot %q\nExp %q", tc.template, got, tc.want)
		}
	}
}

func TestEchoErrorIsRenderedInline(t *testing.T) {
	got := mustCompile(t, New(), "{{ a + b }}|{{ k }}", map[string]any{"k": "v"})

	first, second, ok := strings.Cut(got, "|")
	if !ok {
		t.Fatalf("missing separator in %q", got)
	}
	if !strings.HasPrefix(first, ErrInvalidExpression.Error()) || !strings.HasSuffix(first, " at a + b") {
		t.Errorf("inline diagnostic = %q", first)
	}
	if second != "v" {
		t.Errorf("sibling echo = %q, want %q", second, "v")
	}
}

var equalityComparators = []string{"=", "==", "eq", "equal", "is"}

func TestConditionalEqualValues(t *testing.T) {
	c := New()
	for _, op := range equalityComparators {
		tmpl := fmt.Sprintf("{%% if a %s a %%}if-%s{%% endif %%}", op, op)
		if got, want := mustCompile(t, c, tmpl, map[string]any{"a": true}), "if-"+op; got != want {
			t.Errorf("\nGot %q\nExp %q", got, want)
		}

		tmpl = fmt.Sprintf("{%% unless a %s a %%}unless-%s{%% endunless %%}", op, op)
		if got := mustCompile(t, c, tmpl, map[string]any{"a": true}); got != "" {
			t.Errorf("\nGot %q\nExp %q", got, "")
		}
	}
}

func TestConditionalUnequalValues(t *testing.T) {
	c := New()
	attrs := map[string]any{"a": true, "b": false}
	for _, op := range equalityComparators {
		tmpl := fmt.Sprintf("{%% if a %s b %%}Y{%% endif %%}", op)
		if got := mustCompile(t, c, tmpl, attrs); got != "" {
			t.Errorf("%s\nGot %q\nExp %q", tmpl, got, "")
		}

		tmpl = fmt.Sprintf("{%% unless a %s b %%}Y{%% endunless %%}", op)
		if got := mustCompile(t, c, tmpl, attrs); got != "Y" {
			t.Errorf("%s\nGot %q\nExp %q", tmpl, got, "Y")
		}
	}
}

func TestConditionalStrictOperatorsOnEqualValues(t *testing.T) {
	c := New()
	for _, op := range []string{">", "gt", "greater than"} {
		tmpl := fmt.Sprintf("{%% if a %s a %%}Y{%% endif %%}", op)
		if got := mustCompile(t, c, tmpl, map[string]any{"a": true}); got != "" {
			t.Errorf("%s\nGot %q\nExp %q", tmpl, got, "")
		}
	}
	for _, op := range []string{">=", "gte", "greater than or equal"} {
		tmpl := fmt.Sprintf("{%% if a %s a %%}Y{%% endif %%}", op)
		if got := mustCompile(t, c, tmpl, map[string]any{"a": 3}); got != "Y" {
			t.Errorf("%s\nGot %q\nExp %q", tmpl, got, "Y")
		}
	}
}

func TestUnlessNegatesIf(t *testing.T) {
	attrs := map[string]any{"a": true, "b": false, "n": 5, "flag": 0}
	statements := []string{"a == a", "a == b", "n > 3", "n gt 9", "n >= 5", "flag", "a", "name is 'x'"}
	body := "B{{ n }}"

	c := New()
	for _, s := range statements {
		ifOut := mustCompile(t, c, "{% if "+s+" %}"+body+"{% endif %}", attrs)
		unlessOut := mustCompile(t, c, "{% unless "+s+" %}"+body+"{% endunless %}", attrs)

		if (ifOut == "") != (unlessOut == "B5") {
			t.Errorf("%q: if=%q unless=%q", s, ifOut, unlessOut)
		}
	}
}

func TestConditionalNumbersAndLiterals(t *testing.T) {
	cases := []struct {
		template string
		want     string
	}{
		{"{% if count > 3 %}Y{% endif %}", "Y"},
		{"{% if count:int gte 5 %}Y{% endif %}", "Y"},
		{"{% if count greater than 5 %}Y{% endif %}", ""},
		{"{% if ratio >= 0.5 %}Y{% endif %}", "Y"},
		{"{% if user.role is 'admin' %}Y{% endif %}", "Y"},
		{"{% if user.role == 'guest' %}Y{% endif %}", ""},
		{"{% if user.active %}Y{% endif %}", "Y"},
		{"{% if count == 5 %}Y{% endif %}", "Y"},
		{"{% if score == 3 %}Y{% endif %}", "Y"},
		{"{% if score == 3.0 %}Y{% endif %}", "Y"},
		{"{% if 3 == score %}Y{% endif %}", "Y"},
		{"{% if ratio == 0.75 %}Y{% endif %}", "Y"},
		{"{% if count == 5.5 %}Y{% endif %}", ""},
		{"{% if label == 5 %}Y{% endif %}", ""},
	}

	attrs := map[string]any{
		"count": 5,
		"score": 3.0,
		"label": "5",
		"ratio": 0.75,
		"user":  map[string]any{"role": "admin", "active": true},
	}

	c := New()
	for _, tc := range cases {
		if got := mustCompile(t, c, tc.template, attrs); got != tc.want {
			t.Errorf("%s\nGot %q\nExp %q", tc.template, got, tc.want)
		}
	}
}

func TestConditionalErrors(t *testing.T) {
	cases := []struct {
		template string
		want     error
	}{
		{"{% if is %}positive{% endif %}", ErrInvalidStatement},
		{"{% unless is %}negative{% endunless %}", ErrInvalidStatement},
		{"{% if val comparison value %}sdfsd{% endif %}", ErrInvalidComparison},
		{"{% unless val comparison value %}sdfsd{% endunless %}", ErrInvalidComparison},
		{"{% if a lt b %}x{% endif %}", ErrInvalidComparison},
		{"{% if a != b %}x{% endif %}", ErrInvalidStatement},
	}

	for _, tc := range cases {
		_, err := New().Compile(tc.template, nil)
		if !errors.Is(err, tc.want) {
			t.Errorf("Compile(%q) error = %v, want %v", tc.template, err, tc.want)
		}
	}
}

func TestNestedConditionals(t *testing.T) {
	attrs := map[string]any{"a": true, "b": true}
	for _, outer := range []string{"if", "unless"} {
		for _, inner := range []string{"if", "unless"} {
			for _, op := range equalityComparators {
				tmpl := fmt.Sprintf("{%% %s a %s a %%}{%% %s b %s b %%}%s-%s{%% end%s %%}{%% end%s %%}",
					outer, op, inner, op, inner, op, inner, outer)

				want := ""
				if outer == "if" && inner == "if" {
					want = "if-" + op
				}
				if got := mustCompile(t, New(), tmpl, attrs); got != want {
					t.Errorf("%s\nGot %q\nExp %q", tmpl, got, want)
				}
			}
		}
	}
}

func TestDeepSameNameNesting(t *testing.T) {
	const depth = 20
	tmpl := strings.Repeat("{% if a %}<", depth) + "Y" + strings.Repeat(">{% endif %}", depth)
	want := strings.Repeat("<", depth) + "Y" + strings.Repeat(">", depth)

	if got := mustCompile(t, New(), tmpl, map[string]any{"a": true}); got != want {
		t.Fatalf("\nGot %q\nExp %q", got, want)
	}
}

func TestUnterminatedOuterBlockStaysLiteral(t *testing.T) {
	got := mustCompile(t, New(), "{% if a %}{% if a %}Y{% endif %}", map[string]any{"a": true})
	if want := "{% if a %}Y"; got != want {
		t.Fatalf("\nGot %q\nExp %q", got, want)
	}
}

func TestWhitespaceTolerantTags(t *testing.T) {
	got := mustCompile(t, New(), "{%if a%}Y{%endif%}{%   each i in xs   %}{{i}}{%  endeach  %}", map[string]any{
		"a":  true,
		"xs": []int{1, 2},
	})
	if want := "Y12"; got != want {
		t.Fatalf("\nGot %q\nExp %q", got, want)
	}
}

var loopKeywords = []string{"of", "in"}

func TestLoops(t *testing.T) {
	for _, kw := range loopKeywords {
		cases := []struct {
			template string
			attrs    map[string]any
			want     string
		}{
			{"{% each item " + kw + " items %}expression{% endeach %}", nil, ""},
			{"{% each item " + kw + " items %}{{ item }}{% endeach %}", map[string]any{"items": []any{7}}, "7"},
			{"{% each item,key " + kw + " items %}{{ key }}{% endeach %}", map[string]any{"items": map[int]int{0: 9}}, "0"},
			{"{% each item, key " + kw + " items %}{{ key }}={{ item }};{% endeach %}", map[string]any{"items": map[string]int{"b": 2, "a": 1}}, "a=1;b=2;"},
			{"{% each item " + kw + " items %}{{ index }}{% endeach %}", map[string]any{"items": []string{"x", "y", "z"}}, "012"},
			{"{% each item " + kw + " items %}[{{ item }}]{% endeach %}", map[string]any{"items": "solo"}, "[solo]"},
			{"{% each tag " + kw + " post.tags %}#{{ tag }}{% endeach %}", map[string]any{"post": map[string]any{"tags": []string{"go", "tmpl"}}}, "#go#tmpl"},
		}

		c := New()
		for _, tc := range cases {
			if got := mustCompile(t, c, tc.template, tc.attrs); got != tc.want {
				t.Errorf("%s\nGot %q\nExp %q", tc.template, got, tc.want)
			}
		}
	}
}

func TestInvalidLoopStatement(t *testing.T) {
	_, err := New().Compile("{% each statement %}expression{% endeach %}", nil)
	if !errors.Is(err, ErrInvalidLoopStatement) {
		t.Fatalf("error = %v, want ErrInvalidLoopStatement", err)
	}
}

func TestNestedLoopsScopeInnermost(t *testing.T) {
	attrs := map[string]any{
		"items":       []any{1},
		"nestedItems": []any{2},
	}
	for _, outer := range loopKeywords {
		for _, inner := range loopKeywords {
			tmpl := fmt.Sprintf("{%% each item %s items %%}{%% each item %s nestedItems %%}{{ item }}{%% endeach %%}{%% endeach %%}", outer, inner)
			if got := mustCompile(t, New(), tmpl, attrs); got != "2" {
				t.Errorf("%s\nGot %q\nExp %q", tmpl, got, "2")
			}
		}
	}
}

func TestLoopOverLoopVariable(t *testing.T) {
	attrs := map[string]any{"items": []any{[]any{42}, []any{7, 8}}}
	got := mustCompile(t, New(), "{% each item of items %}{% each value of item %}{{ value }},{% endeach %}{% endeach %}", attrs)
	if want := "42,7,8,"; got != want {
		t.Fatalf("\nGot %q\nExp %q", got, want)
	}
}

func TestLoopParentBinding(t *testing.T) {
	got := mustCompile(t, New(), "{% each item of items %}{{ parent.item }}-{{ parent.index }};{% endeach %}", map[string]any{
		"items": []string{"a", "b"},
	})
	if want := "a-0;b-1;"; got != want {
		t.Fatalf("\nGot %q\nExp %q", got, want)
	}
}

func TestLoopDoesNotMutateAttributes(t *testing.T) {
	attrs := map[string]any{"items": []int{1, 2}}
	mustCompile(t, New(), "{% each item, i of items %}{{ item }}{% endeach %}", attrs)

	if len(attrs) != 1 {
		t.Fatalf("attributes mutated: %v", attrs)
	}
}

func TestLoopsAndConditionalsInterleave(t *testing.T) {
	attrs := map[string]any{"a": true, "items": []any{3}}

	for _, op := range equalityComparators {
		for _, kw := range loopKeywords {
			loop := fmt.Sprintf("{%% each value %s items %%}{{ value }}{%% endeach %%}", kw)

			tmpl := fmt.Sprintf("{%% if a %s a %%}%s{%% endif %%}", op, loop)
			if got := mustCompile(t, New(), tmpl, attrs); got != "3" {
				t.Errorf("%s\nGot %q\nExp %q", tmpl, got, "3")
			}

			tmpl = fmt.Sprintf("{%% each value %s items %%}{%% unless a %s a %%}{{ value }}{%% endunless %%}{%% endeach %%}", kw, op)
			if got := mustCompile(t, New(), tmpl, attrs); got != "" {
				t.Errorf("%s\nGot %q\nExp %q", tmpl, got, "")
			}
		}
	}
}

func TestLoopBodyConditionsUseIterationBindings(t *testing.T) {
	attrs := map[string]any{
		"users": []map[string]any{
			{"name": "ada", "admin": true},
			{"name": "bob", "admin": false},
		},
	}
	tmpl := "{% each u of users %}{% if u.admin %}*{% endif %}{{ u.name }} {% endeach %}"

	if got, want := mustCompile(t, New(), tmpl, attrs), "*ada bob "; got != want {
		t.Fatalf("\nGot %q\nExp %q", got, want)
	}
}

func TestIdempotentOnResolvedOutput(t *testing.T) {
	c := New()
	first := mustCompile(t, c, "{% each n of nums %}{{ n }} {% endeach %}done", map[string]any{"nums": []int{1, 2}})
	if again := mustCompile(t, c, first, nil); again != first {
		t.Fatalf("\nGot %q\nExp %q", again, first)
	}
}

func TestMaxDepth(t *testing.T) {
	c := New(WithMaxDepth(5)).Extend("loop", func(statement, body string, attrs map[string]any) (string, error) {
		return "{% loop again %}{% endloop %}", nil
	})

	_, err := c.Compile("{% loop x %}{% endloop %}", nil)
	if !errors.Is(err, ErrTooDeep) {
		t.Fatalf("error = %v, want ErrTooDeep", err)
	}
}

func TestBuiltinHandlersAsDirectives(t *testing.T) {
	c := New()
	c.Extend("when", c.If).Extend("repeat", c.Each)

	got := mustCompile(t, c, "{% when a %}[{% repeat x in xs %}{{ x }}{% endrepeat %}]{% endwhen %}", map[string]any{
		"a":  true,
		"xs": []int{4, 5},
	})
	if want := "[45]"; got != want {
		t.Fatalf("\nGot %q\nExp %q", got, want)
	}
}

func TestPackageCompile(t *testing.T) {
	got, err := Compile("{{ greeting or 'hi' }}", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "hi" {
		t.Fatalf("\nGot %q\nExp %q", got, "hi")
	}
}

func TestConcurrentCompileAndExtend(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			out, err := c.Compile("{% each n of nums %}{{ n }}{% endeach %}", map[string]any{"nums": []int{i}})
			if err != nil || out != fmt.Sprint(i) {
				t.Errorf("Compile = %q, %v", out, err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			c.Extend(fmt.Sprintf("d%d", i), func(statement, body string, attrs map[string]any) (string, error) {
				return statement, nil
			})
		}(i)
	}
	wg.Wait()

	if got := len(c.Directives()); got != 11 {
		t.Fatalf("Directives() = %d names, want 11", got)
	}
}

func TestClearCache(t *testing.T) {
	c := New(WithCacheSize(1))
	mustCompile(t, c, "a", nil)
	mustCompile(t, c, "b", nil)
	if len(c.cache) != 1 {
		t.Fatalf("cache size = %d, want 1", len(c.cache))
	}
	c.ClearCache()
	if len(c.cache) != 0 {
		t.Fatalf("cache size after clear = %d", len(c.cache))
	}
}
