package prompt

import "regexp"

// Exemplar is a canonical compiler error with a plain-English explanation.
// GoodCode is a partial fix kept for dataset generation only; it is never
// placed in a prompt.
type Exemplar struct {
	Error    string `json:"error"`
	BadCode  string `json:"bad_code"`
	GoodCode string `json:"good_code"`
	Meaning  string `json:"meaning"`
	Rule     string `json:"rule"`

	pattern *regexp.Regexp
}

func exemplar(pattern string, e Exemplar) Exemplar {
	e.pattern = regexp.MustCompile(pattern)
	return e
}

// Catalog holds the common C/C++ errors beginners hit.
var Catalog = []Exemplar{
	exemplar(`expected ';' before`, Exemplar{
		Error:    "error: expected ';' before '}' token",
		BadCode:  "int main() {\n    int x = 10\n}",
		GoodCode: "int main() {\n    int x = 10;\n}",
		Meaning:  "The compiler expected a semicolon to end a statement but found a closing brace instead.",
		Rule:     "Every statement in C/C++ must end with a semicolon.",
	}),
	exemplar(`'(cout|cin|cerr|endl|string|vector|printf|scanf)' was not declared|use of undeclared identifier '(cout|cin|cerr|endl|printf|scanf)'`, Exemplar{
		Error:    "error: 'cout' was not declared in this scope",
		BadCode:  "int main() {\n    cout << \"Hello\";\n}",
		GoodCode: "#include <iostream>\nusing namespace std;\nint main() {\n    cout << \"Hello\";\n}",
		Meaning:  "The compiler does not recognize cout because it was not properly included.",
		Rule:     "Standard library features require proper headers.",
	}),
	exemplar(`expected declaration or statement at end of input|expected '}' at end of input`, Exemplar{
		Error:    "error: expected declaration or statement at end of input",
		BadCode:  "int main() {\n    printf(\"Hi\");",
		GoodCode: "int main() {\n    printf(\"Hi\");\n}",
		Meaning:  "The compiler reached the end of the file while still expecting more code.",
		Rule:     "Every opening brace must have a matching closing brace.",
	}),
	exemplar(`too few arguments to function`, Exemplar{
		Error:    "error: too few arguments to function",
		BadCode:  "void add(int a, int b) {}\nint main() {\n    add(5);\n}",
		GoodCode: "void add(int a, int b) {}\nint main() {\n    add(5, 10);\n}",
		Meaning:  "The function was called without all the required arguments.",
		Rule:     "Functions must be called with the correct number of arguments.",
	}),
	exemplar(`invalid conversion from '[^']+' to '[^']*\*'`, Exemplar{
		Error:    "error: invalid conversion from 'int' to 'int*'",
		BadCode:  "int x = 5;\nint* p = x;",
		GoodCode: "int x = 5;\nint* p = &x;",
		Meaning:  "A pointer was given a normal value instead of an address.",
		Rule:     "Pointers must store addresses, not values.",
	}),
	exemplar(`array subscript is not an integer`, Exemplar{
		Error:    "error: array subscript is not an integer",
		BadCode:  "int arr[5];\narr[\"one\"] = 10;",
		GoodCode: "int arr[5];\narr[1] = 10;",
		Meaning:  "Array indices must be integers.",
		Rule:     "Use only integer values to index arrays.",
	}),
	exemplar(`'[^']+' was not declared in this scope|'[^']+' undeclared|use of undeclared identifier`, Exemplar{
		Error:    "error: 'x' was not declared in this scope",
		BadCode:  "int main() {\n    cout << x;\n}",
		GoodCode: "int main() {\n    int x = 10;\n    cout << x;\n}",
		Meaning:  "The variable was used before being declared.",
		Rule:     "Variables must be declared before use.",
	}),
	exemplar(`redefinition of '`, Exemplar{
		Error:    "error: redefinition of 'int x'",
		BadCode:  "int x = 5;\nint x = 10;",
		GoodCode: "int x = 5;\nx = 10;",
		Meaning:  "The variable was declared more than once in the same scope.",
		Rule:     "A variable can only be declared once per scope.",
	}),
	exemplar(`invalid operands to binary`, Exemplar{
		Error:    "error: invalid operands to binary +",
		BadCode:  "int x = 5;\nchar* s = \"hi\";\nint y = x + s;",
		GoodCode: "int x = 5;\nint y = x + 10;",
		Meaning:  "The addition operator was used with incompatible types.",
		Rule:     "Binary operators require compatible data types.",
	}),
	exemplar(`expected '\)' before`, Exemplar{
		Error:    "error: expected ')' before '{' token",
		BadCode:  "if (x > 5 {\n    x++;\n}",
		GoodCode: "if (x > 5) {\n    x++;\n}",
		Meaning:  "The condition is missing a closing parenthesis.",
		Rule:     "Conditional expressions must be enclosed in parentheses.",
	}),
}

// Match returns the first catalog entry whose pattern occurs in text.
func Match(text string) (Exemplar, bool) {
	for _, e := range Catalog {
		if e.pattern.MatchString(text) {
			return e, true
		}
	}
	return Exemplar{}, false
}
